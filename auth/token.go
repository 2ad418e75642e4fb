// Package auth implements the bearer-token contract the API consumes.
// Identity issuance is otherwise an external concern.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// IssueToken returns a signed bearer token for a voter id, valid for ttl.
func IssueToken(voterID, secret string, ttl time.Duration) string {
	expiry := time.Now().Add(ttl).Unix()
	payload := fmt.Sprintf("%s|%d", voterID, expiry)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + sign(encoded, secret)
}

// VerifyToken validates signature and expiry and returns the voter id.
func VerifyToken(token, secret string) (string, error) {
	encoded, signature, found := strings.Cut(token, ".")
	if !found {
		return "", ErrInvalidToken
	}

	if !hmac.Equal([]byte(sign(encoded, secret)), []byte(signature)) {
		return "", ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}

	voterID, expiryStr, found := strings.Cut(string(payload), "|")
	if !found || voterID == "" {
		return "", ErrInvalidToken
	}

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil || time.Now().Unix() > expiry {
		return "", ErrInvalidToken
	}

	return voterID, nil
}

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
