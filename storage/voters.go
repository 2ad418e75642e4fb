package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"votechain-backend/models"
)

// CreateVoter registers a voter. The descriptor is stored as a JSON array.
func (s *Store) CreateVoter(voter *models.Voter) error {
	descriptor, err := encodeDescriptor(voter.FaceDescriptor)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO voter (id, email, password_hash, face_descriptor)
		VALUES ($1, $2, $3, $4)
	`, voter.ID, voter.Email, voter.PasswordHash, descriptor)
	if err != nil {
		return fmt.Errorf("failed to insert voter: %w", err)
	}
	return nil
}

// VoterByID loads a voter by id.
func (s *Store) VoterByID(id string) (*models.Voter, error) {
	return s.scanVoter(s.db.QueryRow(`
		SELECT id, email, password_hash, face_descriptor FROM voter WHERE id = $1
	`, id))
}

// VoterByEmail loads a voter by email.
func (s *Store) VoterByEmail(email string) (*models.Voter, error) {
	return s.scanVoter(s.db.QueryRow(`
		SELECT id, email, password_hash, face_descriptor FROM voter WHERE email = $1
	`, email))
}

// SetFaceDescriptor stores or clears a voter's enrolled reference vector.
func (s *Store) SetFaceDescriptor(voterID string, descriptor []float64) error {
	encoded, err := encodeDescriptor(descriptor)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE voter SET face_descriptor = $1 WHERE id = $2`, encoded, voterID)
	if err != nil {
		return fmt.Errorf("failed to update face descriptor: %w", err)
	}
	return nil
}

func (s *Store) scanVoter(row *sql.Row) (*models.Voter, error) {
	var (
		voter      models.Voter
		descriptor sql.NullString
	)
	err := row.Scan(&voter.ID, &voter.Email, &voter.PasswordHash, &descriptor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan voter: %w", err)
	}
	if descriptor.Valid && descriptor.String != "" {
		if err := json.Unmarshal([]byte(descriptor.String), &voter.FaceDescriptor); err != nil {
			return nil, fmt.Errorf("failed to decode face descriptor: %w", err)
		}
	}
	return &voter, nil
}

func encodeDescriptor(descriptor []float64) (any, error) {
	if len(descriptor) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to encode face descriptor: %w", err)
	}
	return string(data), nil
}
