package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"votechain-backend/models"
)

// InsertBallot stores a sealed ballot. A conflict on the (voter_id,
// election_id) constraint maps to ErrDuplicateBallot; this is the
// authoritative double-vote guard.
func (s *Store) InsertBallot(ballot *models.Ballot) error {
	_, err := s.db.Exec(`
		INSERT INTO ballot (transaction_hash, vote_code, election_id, candidate_id, voter_id, block_number, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ballot.TransactionHash, ballot.VoteCode, ballot.ElectionID, ballot.CandidateID,
		ballot.VoterID, int64(ballot.BlockNumber), ballot.Timestamp)
	if err != nil {
		if isUniqueViolation(err, "ballot.voter_id", "ballot.election_id") {
			return ErrDuplicateBallot
		}
		return fmt.Errorf("failed to insert ballot: %w", err)
	}
	return nil
}

// HasBallot reports whether a ballot exists for the (voter, election) pair.
// This is a fast pre-filter; InsertBallot remains the authority.
func (s *Store) HasBallot(voterID, electionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM ballot WHERE voter_id = $1 AND election_id = $2)
	`, voterID, electionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ballot existence: %w", err)
	}
	return exists, nil
}

// BallotByVoteCode returns the ballot carrying the given verification code.
func (s *Store) BallotByVoteCode(voteCode string) (*models.Ballot, error) {
	var (
		ballot      models.Ballot
		blockNumber int64
	)
	err := s.db.QueryRow(`
		SELECT transaction_hash, vote_code, election_id, candidate_id, voter_id, block_number, timestamp
		FROM ballot WHERE vote_code = $1
	`, voteCode).Scan(&ballot.TransactionHash, &ballot.VoteCode, &ballot.ElectionID,
		&ballot.CandidateID, &ballot.VoterID, &blockNumber, &ballot.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ballot by vote code: %w", err)
	}
	ballot.BlockNumber = uint64(blockNumber)
	return &ballot, nil
}

// BallotCount returns the total number of recorded ballots.
func (s *Store) BallotCount() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ballot`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ballots: %w", err)
	}
	return count, nil
}

// CountByCandidate returns per-candidate ballot counts for an election.
func (s *Store) CountByCandidate(electionID string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT candidate_id, COUNT(*) FROM ballot
		WHERE election_id = $1 GROUP BY candidate_id
	`, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			candidateID string
			count       int64
		)
		if err := rows.Scan(&candidateID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[candidateID] = count
	}
	return counts, rows.Err()
}

// BallotCountForElection returns the number of ballots in one election.
func (s *Store) BallotCountForElection(electionID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ballot WHERE election_id = $1`, electionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count election ballots: %w", err)
	}
	return count, nil
}
