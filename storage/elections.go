package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"votechain-backend/models"
)

// CreateElection stores an election together with its candidates.
func (s *Store) CreateElection(election *models.Election) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO election (id, title, status, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
	`, election.ID, election.Title, election.Status, election.StartTime, nullableTime(election.EndTime))
	if err != nil {
		return fmt.Errorf("failed to insert election: %w", err)
	}

	for _, candidate := range election.Candidates {
		_, err = tx.Exec(`
			INSERT INTO candidate (id, election_id, name, party, image_url)
			VALUES ($1, $2, $3, $4, $5)
		`, candidate.ID, election.ID, candidate.Name, candidate.Party, candidate.ImageURL)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", candidate.ID, err)
		}
	}

	return tx.Commit()
}

// GetElection loads an election and its candidates.
func (s *Store) GetElection(id string) (*models.Election, error) {
	var (
		election models.Election
		endTime  sql.NullInt64
	)
	err := s.db.QueryRow(`
		SELECT id, title, status, start_time, end_time FROM election WHERE id = $1
	`, id).Scan(&election.ID, &election.Title, &election.Status, &election.StartTime, &endTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query election: %w", err)
	}
	if endTime.Valid {
		election.EndTime = endTime.Int64
	}

	rows, err := s.db.Query(`
		SELECT id, name, party, COALESCE(image_url, '') FROM candidate WHERE election_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var candidate models.Candidate
		if err := rows.Scan(&candidate.ID, &candidate.Name, &candidate.Party, &candidate.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		election.Candidates = append(election.Candidates, candidate)
	}
	return &election, rows.Err()
}

// SetElectionStatus transitions an election's status.
func (s *Store) SetElectionStatus(id, status string) error {
	result, err := s.db.Exec(`UPDATE election SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update election status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableTime(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
