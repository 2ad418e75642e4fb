package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain-backend/ledger"
	"votechain-backend/models"
	"votechain-backend/notify"
	"votechain-backend/storage"
)

const testDifficulty = 1

type fixture struct {
	store       *storage.Store
	chain       *ledger.Ledger
	coordinator *Coordinator
	notifier    *notify.MockNotifier
	metrics     *MetricsCollector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	chain := ledger.New(store)
	require.NoError(t, chain.EnsureGenesis())

	notifier := notify.NewMockNotifier()
	metrics := NewMetricsCollector()
	coordinator := NewCoordinator(
		store,
		chain,
		ledger.NewMiner(testDifficulty),
		NewChallengeService(store, DefaultChallengeConfig()),
		NewAuthorizer(0.60),
		notifier,
		nil,
		metrics,
	)
	coordinator.Start()
	t.Cleanup(coordinator.Stop)

	require.NoError(t, store.CreateElection(&models.Election{
		ID:     "e1",
		Title:  "Board Election",
		Status: models.ElectionStatusActive,
		Candidates: []models.Candidate{
			{ID: "c1", Name: "Alice", Party: "Red"},
			{ID: "c2", Name: "Bob", Party: "Blue"},
		},
	}))
	require.NoError(t, store.CreateVoter(&models.Voter{
		ID:           "v1",
		Email:        "annette@example.com",
		PasswordHash: HashPassword("hunter2"),
	}))

	return &fixture{
		store:       store,
		chain:       chain,
		coordinator: coordinator,
		notifier:    notifier,
		metrics:     metrics,
	}
}

func passwordCredentials() models.Credentials {
	return models.Credentials{Password: "hunter2"}
}

func TestCodeFlowCommitsBallot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	masked, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c1", passwordCredentials())
	require.NoError(t, err)
	assert.Equal(t, "ann****@example.com", masked)

	code := f.notifier.LastCode()
	require.NotEmpty(t, code)

	receipt, err := f.coordinator.VerifyAndCommit(ctx, "v1", "e1", code)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.BlockNumber)
	assert.Equal(t, "c1", receipt.CandidateID)
	assert.NotEmpty(t, receipt.TransactionHash)
	assert.Regexp(t, `^VOTE-[A-Z0-9]{4}-[A-Z0-9]{4}$`, receipt.VoteVerificationCode)

	block, err := f.chain.BlockByIndex(1)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, receipt.TransactionHash, block.Transactions[0].TransactionHash)

	valid, err := f.chain.Verify(testDifficulty)
	require.NoError(t, err)
	assert.True(t, valid)

	// The consumed challenge cannot commit a second ballot.
	_, err = f.coordinator.VerifyAndCommit(ctx, "v1", "e1", code)
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestDoubleVoteRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.DirectCommit(ctx, "v1", "e1", "c1", passwordCredentials())
	require.NoError(t, err)

	_, err = f.coordinator.DirectCommit(ctx, "v1", "e1", "c2", passwordCredentials())
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	_, err = f.coordinator.RequestCode(ctx, "v1", "e1", "c2", passwordCredentials())
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	count, err := f.store.BallotCountForElection("e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWrongCodeThenExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c1", passwordCredentials())
	require.NoError(t, err)

	var mismatch *CodeMismatchError
	_, err = f.coordinator.VerifyAndCommit(ctx, "v1", "e1", "000000")
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Remaining)

	_, err = f.coordinator.VerifyAndCommit(ctx, "v1", "e1", "000000")
	assert.ErrorIs(t, err, ErrCodeInvalidated)

	// No ballot was recorded and the voter can request a fresh code.
	voted, err := f.store.HasBallot("v1", "e1")
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = f.coordinator.RequestCode(ctx, "v1", "e1", "c1", passwordCredentials())
	assert.NoError(t, err)
}

func TestRequestCodeFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("bad credentials", func(t *testing.T) {
		_, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c1", models.Credentials{Password: "wrong"})
		assert.ErrorIs(t, err, ErrAuthorizationFailed)
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c1", models.Credentials{})
		assert.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("closed election", func(t *testing.T) {
		require.NoError(t, f.store.SetElectionStatus("e1", models.ElectionStatusClosed))
		_, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c1", passwordCredentials())
		assert.ErrorIs(t, err, ErrElectionClosed)
		require.NoError(t, f.store.SetElectionStatus("e1", models.ElectionStatusActive))
	})

	t.Run("notifier down", func(t *testing.T) {
		f.notifier.Err = context.DeadlineExceeded
		_, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c1", passwordCredentials())
		assert.ErrorIs(t, err, ErrNotifierFailure)
		f.notifier.Err = nil
	})
}

func TestElectionClosesBetweenIssueAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c1", passwordCredentials())
	require.NoError(t, err)
	code := f.notifier.LastCode()

	require.NoError(t, f.store.SetElectionStatus("e1", models.ElectionStatusClosed))

	_, err = f.coordinator.VerifyAndCommit(ctx, "v1", "e1", code)
	assert.ErrorIs(t, err, ErrElectionClosed)

	voted, err := f.store.HasBallot("v1", "e1")
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestCommittedCandidateComesFromChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.RequestCode(ctx, "v1", "e1", "c2", passwordCredentials())
	require.NoError(t, err)

	receipt, err := f.coordinator.VerifyAndCommit(ctx, "v1", "e1", f.notifier.LastCode())
	require.NoError(t, err)
	assert.Equal(t, "c2", receipt.CandidateID)

	sent := f.notifier.Sent[len(f.notifier.Sent)-1]
	assert.Equal(t, "Bob", sent.CandidateName)
	assert.Equal(t, "Board Election", sent.ElectionName)
}

func TestTallyAfterCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateVoter(&models.Voter{
		ID:           "v2",
		Email:        "bo@example.com",
		PasswordHash: HashPassword("hunter2"),
	}))

	r1, err := f.coordinator.DirectCommit(ctx, "v1", "e1", "c1", passwordCredentials())
	require.NoError(t, err)
	_, err = f.coordinator.DirectCommit(ctx, "v2", "e1", "c1", passwordCredentials())
	require.NoError(t, err)

	tally := NewTallyService(f.store)

	results, err := tally.Results("e1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), results.TotalVotes)

	lookup, err := tally.Lookup(r1.VoteVerificationCode)
	require.NoError(t, err)
	assert.True(t, lookup.Valid)
	assert.Equal(t, "Board Election", lookup.ElectionTitle)
	assert.Equal(t, r1.TransactionHash, lookup.TransactionHash)

	lookup, err = tally.Lookup("VOTE-ZZZZ-ZZZZ")
	require.NoError(t, err)
	assert.False(t, lookup.Valid)

	stats, err := tally.Stats(f.metrics)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.BlockCount, "genesis plus two ballots")
	assert.Equal(t, int64(2), stats.BallotCount)
}
