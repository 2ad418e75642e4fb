package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"votechain-backend/ledger"
	"votechain-backend/models"
	"votechain-backend/notify"
	"votechain-backend/storage"
)

// Coordinator drives the end-to-end ballot flow:
// authorize → rate-limit → issue code → verify code → re-validate →
// mine → append → receipt. It holds no persistent state of its own.
type Coordinator struct {
	store      *storage.Store
	chain      *ledger.Ledger
	miner      *ledger.Miner
	factory    *ledger.TransactionFactory
	authorizer *Authorizer
	challenges *ChallengeService
	notifier   notify.Notifier
	signer     *ReceiptSigner
	metrics    *MetricsCollector

	queue       *commitQueue
	sweepCancel context.CancelFunc
}

// NewCoordinator wires the commit protocol together. The signer may be nil
// for deployments that do not sign receipts.
func NewCoordinator(
	store *storage.Store,
	chain *ledger.Ledger,
	miner *ledger.Miner,
	challenges *ChallengeService,
	authorizer *Authorizer,
	notifier notify.Notifier,
	signer *ReceiptSigner,
	metrics *MetricsCollector,
) *Coordinator {
	c := &Coordinator{
		store:      store,
		chain:      chain,
		miner:      miner,
		factory:    ledger.NewTransactionFactory(),
		authorizer: authorizer,
		challenges: challenges,
		notifier:   notifier,
		signer:     signer,
		metrics:    metrics,
	}
	c.queue = newCommitQueue(c.commit, 16)
	return c
}

// Start launches the commit worker and the expired-challenge sweeper.
func (c *Coordinator) Start() {
	c.queue.Start()

	ctx, cancel := context.WithCancel(context.Background())
	c.sweepCancel = cancel
	go c.sweepLoop(ctx)
}

// Stop shuts the worker down, letting any in-flight commit finish.
func (c *Coordinator) Stop() {
	if c.sweepCancel != nil {
		c.sweepCancel()
	}
	c.queue.Stop()
}

// RequestCode authorizes the voter, enforces the rate limit, issues a
// time-boxed one-time code bound to the candidate choice, and delivers it
// through the notifier. Returns the masked destination address.
func (c *Coordinator) RequestCode(ctx context.Context, voterID, electionID, candidateID string, credentials models.Credentials) (string, error) {
	voter, err := c.store.VoterByID(voterID)
	if err != nil {
		return "", fmt.Errorf("failed to load voter: %w", err)
	}

	if err := c.authorizer.Authorize(voter, credentials); err != nil {
		return "", err
	}

	election, err := c.preCheck(voterID, electionID)
	if err != nil {
		return "", err
	}

	code, err := c.challenges.Issue(voterID, electionID, candidateID)
	if err != nil {
		return "", err
	}

	candidateName := candidateID
	if candidate, ok := election.Candidate(candidateID); ok {
		candidateName = candidate.Name
	}

	if err := c.notifier.Send(ctx, voter.Email, code, election.Title, candidateName); err != nil {
		slog.Error("code delivery failed", "voter_id", voterID, "election_id", electionID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrNotifierFailure, err)
	}

	c.metrics.RecordCodeIssued()
	slog.Info("one-time code issued", "voter_id", voterID, "election_id", electionID)

	return notify.MaskEmail(voter.Email), nil
}

// VerifyAndCommit checks the submitted code, re-validates election state and
// the double-vote invariant, and commits the ballot bound to the challenge's
// candidate. The candidate choice comes from the stored challenge, never
// from the caller, so a verified code cannot be redirected.
func (c *Coordinator) VerifyAndCommit(ctx context.Context, voterID, electionID, code string) (*models.Receipt, error) {
	challenge, err := c.challenges.Verify(voterID, electionID, code)
	if err != nil {
		c.metrics.RecordVerifyFailure()
		return nil, err
	}

	// A concurrent commit could have landed between issuance and now.
	if _, err := c.preCheck(voterID, electionID); err != nil {
		return nil, err
	}

	receipt, err := c.queue.Submit(ctx, voterID, electionID, challenge.CandidateID)
	if err != nil {
		return nil, err
	}

	if err := c.challenges.Consume(voterID, electionID); err != nil {
		slog.Warn("failed to delete consumed challenge", "voter_id", voterID, "error", err)
	}

	slog.Info("ballot committed",
		"voter_id", voterID,
		"election_id", electionID,
		"block_number", receipt.BlockNumber,
		"transaction_hash", receipt.TransactionHash)
	return receipt, nil
}

// DirectCommit is the code-less path: authorize, pre-check once, commit.
// Deployments using it accept the weaker guarantee of skipping the one-time
// code exchange.
func (c *Coordinator) DirectCommit(ctx context.Context, voterID, electionID, candidateID string, credentials models.Credentials) (*models.Receipt, error) {
	voter, err := c.store.VoterByID(voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load voter: %w", err)
	}

	if err := c.authorizer.Authorize(voter, credentials); err != nil {
		return nil, err
	}

	if _, err := c.preCheck(voterID, electionID); err != nil {
		return nil, err
	}

	receipt, err := c.queue.Submit(ctx, voterID, electionID, candidateID)
	if err != nil {
		return nil, err
	}

	slog.Info("ballot committed (direct)",
		"voter_id", voterID,
		"election_id", electionID,
		"block_number", receipt.BlockNumber)
	return receipt, nil
}

// preCheck validates that the election accepts ballots and that no ballot
// exists for the (voter, election) pair. The ballot-table constraint remains
// the authority; this improves error reporting.
func (c *Coordinator) preCheck(voterID, electionID string) (*models.Election, error) {
	election, err := c.store.GetElection(electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load election: %w", err)
	}
	if !election.IsOpen() {
		return nil, ErrElectionClosed
	}

	voted, err := c.store.HasBallot(voterID, electionID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrAlreadyVoted
	}
	return election, nil
}

// commit runs on the commit worker, which is the ledger's only writer. Once
// it starts it runs to completion or a fatal error.
func (c *Coordinator) commit(voterID, electionID, candidateID string) (*models.Receipt, error) {
	latest, err := c.chain.LatestBlock()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest block: %w", err)
	}

	blockNumber := latest.Index + 1
	timestamp := time.Now().UnixMilli()

	ballot := c.factory.BuildBallot(voterID, candidateID, electionID)
	c.factory.SealBallot(ballot, blockNumber, timestamp)

	block := &models.Block{
		Index:        blockNumber,
		Timestamp:    timestamp,
		Transactions: []models.Ballot{*ballot},
		PreviousHash: latest.Hash,
	}

	miningStart := time.Now()
	c.miner.Seal(block)
	miningTime := time.Since(miningStart)

	// Append writes the ballot and its block in one transaction. The unique
	// (voter_id, election_id) constraint is the authoritative double-vote
	// guard; a lost race surfaces here as AlreadyVoted.
	if err := c.chain.Append(block); err != nil {
		if errors.Is(err, storage.ErrDuplicateBallot) {
			return nil, ErrAlreadyVoted
		}
		return nil, err
	}

	c.metrics.RecordCommit(miningTime)

	receipt := &models.Receipt{
		TransactionHash:      ballot.TransactionHash,
		BlockNumber:          ballot.BlockNumber,
		Timestamp:            ballot.Timestamp,
		VoteVerificationCode: ballot.VoteCode,
		CandidateID:          candidateID,
		ElectionID:           electionID,
	}
	if c.signer != nil {
		if err := c.signer.SignReceipt(receipt); err != nil {
			slog.Warn("failed to sign receipt", "transaction_hash", receipt.TransactionHash, "error", err)
		}
	}
	return receipt, nil
}

func (c *Coordinator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			purged, err := c.challenges.PurgeExpired()
			if err != nil {
				slog.Warn("challenge sweep failed", "error", err)
			} else if purged > 0 {
				slog.Debug("purged expired challenges", "count", purged)
			}
		case <-ctx.Done():
			return
		}
	}
}
