package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"votechain-backend/models"
)

// GetChallenge loads the pending code challenge for a (user, election) pair.
func (s *Store) GetChallenge(userID, electionID string) (*models.CodeChallenge, error) {
	var challenge models.CodeChallenge
	err := s.db.QueryRow(`
		SELECT user_id, election_id, candidate_id, code_hash, expires_at, attempts, last_request_time, request_count
		FROM code_challenge WHERE user_id = $1 AND election_id = $2
	`, userID, electionID).Scan(&challenge.UserID, &challenge.ElectionID, &challenge.CandidateID,
		&challenge.CodeHash, &challenge.ExpiresAt, &challenge.Attempts,
		&challenge.LastRequestTime, &challenge.RequestCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query code challenge: %w", err)
	}
	return &challenge, nil
}

// PutChallenge inserts or overwrites the challenge for its (user, election)
// key. Overwriting is the intended behavior for repeated code requests.
func (s *Store) PutChallenge(challenge *models.CodeChallenge) error {
	_, err := s.db.Exec(`
		INSERT INTO code_challenge (user_id, election_id, candidate_id, code_hash, expires_at, attempts, last_request_time, request_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, election_id) DO UPDATE SET
			candidate_id = excluded.candidate_id,
			code_hash = excluded.code_hash,
			expires_at = excluded.expires_at,
			attempts = excluded.attempts,
			last_request_time = excluded.last_request_time,
			request_count = excluded.request_count
	`, challenge.UserID, challenge.ElectionID, challenge.CandidateID, challenge.CodeHash,
		challenge.ExpiresAt, challenge.Attempts, challenge.LastRequestTime, challenge.RequestCount)
	if err != nil {
		return fmt.Errorf("failed to store code challenge: %w", err)
	}
	return nil
}

// UpdateChallengeAttempts persists an incremented attempt counter.
func (s *Store) UpdateChallengeAttempts(userID, electionID string, attempts int) error {
	_, err := s.db.Exec(`
		UPDATE code_challenge SET attempts = $1 WHERE user_id = $2 AND election_id = $3
	`, attempts, userID, electionID)
	if err != nil {
		return fmt.Errorf("failed to update challenge attempts: %w", err)
	}
	return nil
}

// DeleteChallenge removes the challenge for a (user, election) pair.
func (s *Store) DeleteChallenge(userID, electionID string) error {
	_, err := s.db.Exec(`
		DELETE FROM code_challenge WHERE user_id = $1 AND election_id = $2
	`, userID, electionID)
	if err != nil {
		return fmt.Errorf("failed to delete code challenge: %w", err)
	}
	return nil
}

// DeleteExpiredChallenges removes every challenge past its expiry. Sqlite has
// no TTL index, so the sweeper calls this periodically.
func (s *Store) DeleteExpiredChallenges(now int64) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM code_challenge WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired challenges: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return purged, nil
}
