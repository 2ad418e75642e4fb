package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"votechain-backend/models"
	"votechain-backend/storage"
)

// ChallengeConfig bounds the one-time-code state machine.
type ChallengeConfig struct {
	CodeTTL       time.Duration // code validity after issuance
	RequestWindow time.Duration // sliding rate-limit window
	RequestCap    int           // max code requests per window
	AttemptCap    int           // max failed verifications per code
}

// DefaultChallengeConfig matches the protocol constants: a 2-minute code,
// at most 3 requests per 10 minutes, 2 verification attempts.
func DefaultChallengeConfig() ChallengeConfig {
	return ChallengeConfig{
		CodeTTL:       2 * time.Minute,
		RequestWindow: 10 * time.Minute,
		RequestCap:    3,
		AttemptCap:    2,
	}
}

// ChallengeService owns the lifecycle of pending one-time codes. The
// persisted challenge row is the single source of truth; issuance and
// verification may run in different processes.
type ChallengeService struct {
	store *storage.Store
	cfg   ChallengeConfig
	now   func() time.Time
}

func NewChallengeService(store *storage.Store, cfg ChallengeConfig) *ChallengeService {
	if cfg.RequestCap <= 0 {
		cfg = DefaultChallengeConfig()
	}
	return &ChallengeService{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Issue enforces the request rate limit, then binds a fresh code to the
// (user, election, candidate) triple, overwriting any prior challenge. The
// plaintext code is returned once for delivery and never stored.
func (cs *ChallengeService) Issue(userID, electionID, candidateID string) (string, error) {
	now := cs.now().UnixMilli()
	requestCount := 1

	existing, err := cs.store.GetChallenge(userID, electionID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if existing != nil {
		if now-existing.LastRequestTime <= cs.cfg.RequestWindow.Milliseconds() {
			if existing.RequestCount >= cs.cfg.RequestCap {
				return "", ErrRateLimited
			}
			requestCount = existing.RequestCount + 1
		}
		// Window elapsed: the counter resets to 1.
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}

	challenge := &models.CodeChallenge{
		UserID:          userID,
		ElectionID:      electionID,
		CandidateID:     candidateID,
		CodeHash:        string(codeHash),
		ExpiresAt:       now + cs.cfg.CodeTTL.Milliseconds(),
		Attempts:        0,
		LastRequestTime: now,
		RequestCount:    requestCount,
	}
	if err := cs.store.PutChallenge(challenge); err != nil {
		return "", err
	}

	return code, nil
}

// Verify checks a submitted code against the pending challenge and returns
// the challenge (with its bound candidate) on success. Expired or exhausted
// challenges are deleted on discovery.
func (cs *ChallengeService) Verify(userID, electionID, code string) (*models.CodeChallenge, error) {
	challenge, err := cs.store.GetChallenge(userID, electionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCodeExpired
	}
	if err != nil {
		return nil, err
	}

	now := cs.now().UnixMilli()
	if now > challenge.ExpiresAt {
		if err := cs.store.DeleteChallenge(userID, electionID); err != nil {
			return nil, err
		}
		return nil, ErrCodeExpired
	}

	if challenge.Attempts >= cs.cfg.AttemptCap {
		if err := cs.store.DeleteChallenge(userID, electionID); err != nil {
			return nil, err
		}
		return nil, ErrCodeInvalidated
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		challenge.Attempts++
		if challenge.Attempts >= cs.cfg.AttemptCap {
			if err := cs.store.DeleteChallenge(userID, electionID); err != nil {
				return nil, err
			}
			return nil, ErrCodeInvalidated
		}
		if err := cs.store.UpdateChallengeAttempts(userID, electionID, challenge.Attempts); err != nil {
			return nil, err
		}
		return nil, &CodeMismatchError{Remaining: cs.cfg.AttemptCap - challenge.Attempts}
	}

	return challenge, nil
}

// Consume deletes a successfully verified challenge.
func (cs *ChallengeService) Consume(userID, electionID string) error {
	return cs.store.DeleteChallenge(userID, electionID)
}

// PurgeExpired removes challenges past their expiry.
func (cs *ChallengeService) PurgeExpired() (int64, error) {
	return cs.store.DeleteExpiredChallenges(cs.now().UnixMilli())
}

// generateCode returns a 6-character uppercase hex code.
func generateCode() (string, error) {
	buffer := make([]byte, 4)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buffer))[:6], nil
}
