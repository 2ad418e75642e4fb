package service

import (
	"errors"
	"fmt"

	"votechain-backend/models"
	"votechain-backend/storage"
)

// TallyService answers the read-only questions: per-candidate counts, public
// receipt lookup and system-wide stats.
type TallyService struct {
	store *storage.Store
}

func NewTallyService(store *storage.Store) *TallyService {
	return &TallyService{store: store}
}

// ElectionResults holds per-candidate ballot counts for one election.
type ElectionResults struct {
	ElectionID string           `json:"election_id"`
	Title      string           `json:"title"`
	Status     string           `json:"status"`
	TotalVotes int64            `json:"total_votes"`
	Counts     map[string]int64 `json:"counts"`
}

// Results tallies an election's ballots per candidate.
func (ts *TallyService) Results(electionID string) (*ElectionResults, error) {
	election, err := ts.store.GetElection(electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load election: %w", err)
	}

	counts, err := ts.store.CountByCandidate(electionID)
	if err != nil {
		return nil, err
	}
	total, err := ts.store.BallotCountForElection(electionID)
	if err != nil {
		return nil, err
	}

	return &ElectionResults{
		ElectionID: electionID,
		Title:      election.Title,
		Status:     election.Status,
		TotalVotes: total,
		Counts:     counts,
	}, nil
}

// Lookup resolves a public verification code. It never reveals candidate or
// voter identity; an unknown code yields {valid: false} rather than an error.
func (ts *TallyService) Lookup(voteCode string) (*models.VoteLookup, error) {
	ballot, err := ts.store.BallotByVoteCode(voteCode)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.VoteLookup{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	title := "Unknown Election"
	if election, err := ts.store.GetElection(ballot.ElectionID); err == nil {
		title = election.Title
	}

	return &models.VoteLookup{
		Valid:           true,
		ElectionTitle:   title,
		Timestamp:       ballot.Timestamp,
		BlockNumber:     ballot.BlockNumber,
		TransactionHash: ballot.TransactionHash,
	}, nil
}

// SystemStats is the aggregate view for dashboards.
type SystemStats struct {
	BlockCount  int64           `json:"block_count"`
	BallotCount int64           `json:"ballot_count"`
	Metrics     MetricsSnapshot `json:"metrics"`
}

// Stats reports ledger-wide counts plus protocol metrics.
func (ts *TallyService) Stats(metrics *MetricsCollector) (*SystemStats, error) {
	blocks, err := ts.store.BlockCount()
	if err != nil {
		return nil, err
	}
	ballots, err := ts.store.BallotCount()
	if err != nil {
		return nil, err
	}
	stats := &SystemStats{
		BlockCount:  blocks,
		BallotCount: ballots,
	}
	if metrics != nil {
		stats.Metrics = metrics.Snapshot()
	}
	return stats, nil
}
