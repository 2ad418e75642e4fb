package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"

	"votechain-backend/models"
)

// DescriptorLength is the dimensionality of face descriptor vectors.
const DescriptorLength = 128

// Authorizer decides whether a requester is who they claim to be, by
// biometric distance against the enrolled reference vector or by password
// hash comparison. Either path succeeding authorizes the request.
type Authorizer struct {
	descriptorLength int
	threshold        float64
}

// NewAuthorizer returns an authorizer accepting biometric matches below the
// given euclidean distance threshold (lower is stricter).
func NewAuthorizer(threshold float64) *Authorizer {
	return &Authorizer{
		descriptorLength: DescriptorLength,
		threshold:        threshold,
	}
}

// Authorize checks the supplied credentials against the voter's stored
// reference data. Returns ErrMissingCredential when neither credential was
// supplied, ErrAuthorizationFailed when credentials were supplied but none
// matched.
func (a *Authorizer) Authorize(voter *models.Voter, credentials models.Credentials) error {
	if len(credentials.FaceDescriptor) == 0 && credentials.Password == "" {
		return ErrMissingCredential
	}

	if a.matchFace(voter, credentials.FaceDescriptor) {
		return nil
	}

	if credentials.Password != "" && VerifyPassword(credentials.Password, voter.PasswordHash) {
		return nil
	}

	return ErrAuthorizationFailed
}

func (a *Authorizer) matchFace(voter *models.Voter, input []float64) bool {
	if len(input) != a.descriptorLength {
		return false
	}
	if len(voter.FaceDescriptor) != a.descriptorLength {
		// No reference vector on file, or a malformed one.
		return false
	}

	distance := EuclideanDistance(
		NormalizeDescriptor(voter.FaceDescriptor),
		NormalizeDescriptor(input),
	)
	slog.Debug("face authorization distance", "voter_id", voter.ID, "distance", distance)

	return distance < a.threshold
}

// NormalizeDescriptor L2-normalizes a descriptor. Vectors already within
// 0.01 of unit norm pass through unchanged, as does the zero vector.
func NormalizeDescriptor(descriptor []float64) []float64 {
	var sum float64
	for _, v := range descriptor {
		sum += v * v
	}
	magnitude := math.Sqrt(sum)

	if math.Abs(magnitude-1.0) < 0.01 || magnitude == 0 {
		return descriptor
	}

	normalized := make([]float64, len(descriptor))
	for i, v := range descriptor {
		normalized[i] = v / magnitude
	}
	return normalized
}

// EuclideanDistance returns the L2 distance between two vectors, or +Inf on
// dimension mismatch.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// HashPassword returns the SHA-256 hex digest of a password. The stored
// credential format is a bare digest, so verification is a digest compare.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword compares in constant time.
func VerifyPassword(password, storedHash string) bool {
	computed := HashPassword(password)
	return hmac.Equal([]byte(computed), []byte(storedHash))
}
