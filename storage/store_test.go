package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"votechain-backend/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testBallot(voterID, electionID, voteCode string) *models.Ballot {
	ballot := &models.Ballot{
		ElectionID:  electionID,
		CandidateID: "c1",
		VoterID:     voterID,
		VoteCode:    voteCode,
		BlockNumber: 1,
		Timestamp:   1700000000000,
	}
	ballot.TransactionHash = ballot.ComputeTransactionHash()
	return ballot
}

func TestInsertBallotEnforcesOneVotePerElection(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.InsertBallot(testBallot("v1", "e1", "VOTE-AAAA-0001")))

	// Same voter, same election: the constraint is the authority.
	err := store.InsertBallot(testBallot("v1", "e1", "VOTE-AAAA-0002"))
	assert.ErrorIs(t, err, ErrDuplicateBallot)

	// Same voter in another election is fine.
	assert.NoError(t, store.InsertBallot(testBallot("v1", "e2", "VOTE-AAAA-0003")))

	// Another voter in the first election is fine.
	assert.NoError(t, store.InsertBallot(testBallot("v2", "e1", "VOTE-AAAA-0004")))
}

func TestHasBallot(t *testing.T) {
	store := newTestStore(t)

	voted, err := store.HasBallot("v1", "e1")
	require.NoError(t, err)
	assert.False(t, voted)

	require.NoError(t, store.InsertBallot(testBallot("v1", "e1", "VOTE-AAAA-0001")))

	voted, err = store.HasBallot("v1", "e1")
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = store.HasBallot("v1", "e2")
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestBallotByVoteCode(t *testing.T) {
	store := newTestStore(t)

	inserted := testBallot("v1", "e1", "VOTE-AAAA-0001")
	require.NoError(t, store.InsertBallot(inserted))

	ballot, err := store.BallotByVoteCode("VOTE-AAAA-0001")
	require.NoError(t, err)
	assert.Equal(t, inserted.TransactionHash, ballot.TransactionHash)
	assert.Equal(t, "v1", ballot.VoterID)

	_, err = store.BallotByVoteCode("VOTE-ZZZZ-9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountByCandidate(t *testing.T) {
	store := newTestStore(t)

	ballots := []*models.Ballot{
		testBallot("v1", "e1", "VOTE-AAAA-0001"),
		testBallot("v2", "e1", "VOTE-AAAA-0002"),
		testBallot("v3", "e1", "VOTE-AAAA-0003"),
	}
	ballots[2].CandidateID = "c2"
	for _, b := range ballots {
		require.NoError(t, store.InsertBallot(b))
	}

	counts, err := store.CountByCandidate("e1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"c1": 2, "c2": 1}, counts)

	total, err := store.BallotCountForElection("e1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestBlockRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LatestBlock()
	assert.ErrorIs(t, err, ErrNotFound)

	genesis := models.NewGenesisBlock()
	require.NoError(t, store.AppendBlock(genesis))

	next := &models.Block{
		Index:        1,
		Timestamp:    1700000000000,
		Transactions: []models.Ballot{*testBallot("v1", "e1", "VOTE-AAAA-0001")},
		PreviousHash: genesis.Hash,
		Nonce:        7,
	}
	next.Hash = next.CalculateHash()
	require.NoError(t, store.AppendBlock(next))

	latest, err := store.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, next.Hash, latest.Hash)
	require.Len(t, latest.Transactions, 1)
	assert.Equal(t, "v1", latest.Transactions[0].VoterID)

	chain, err := store.Chain()
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, genesis.Hash, chain[0].Hash)
	assert.Equal(t, next.Hash, chain[1].Hash)

	// Re-inserting the same index is a uniqueness violation, not silence.
	assert.Error(t, store.AppendBlock(next))
}

func TestChallengeLifecycle(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetChallenge("v1", "e1")
	assert.ErrorIs(t, err, ErrNotFound)

	challenge := &models.CodeChallenge{
		UserID:          "v1",
		ElectionID:      "e1",
		CandidateID:     "c1",
		CodeHash:        "hash-1",
		ExpiresAt:       1000,
		LastRequestTime: 900,
		RequestCount:    1,
	}
	require.NoError(t, store.PutChallenge(challenge))

	loaded, err := store.GetChallenge("v1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "c1", loaded.CandidateID)
	assert.Equal(t, 1, loaded.RequestCount)

	// Reissue overwrites in place.
	challenge.CodeHash = "hash-2"
	challenge.CandidateID = "c2"
	challenge.RequestCount = 2
	require.NoError(t, store.PutChallenge(challenge))

	loaded, err = store.GetChallenge("v1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", loaded.CodeHash)
	assert.Equal(t, "c2", loaded.CandidateID)

	require.NoError(t, store.UpdateChallengeAttempts("v1", "e1", 1))
	loaded, err = store.GetChallenge("v1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Attempts)

	require.NoError(t, store.DeleteChallenge("v1", "e1"))
	_, err = store.GetChallenge("v1", "e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteExpiredChallenges(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutChallenge(&models.CodeChallenge{
		UserID: "v1", ElectionID: "e1", CodeHash: "h", ExpiresAt: 100,
	}))
	require.NoError(t, store.PutChallenge(&models.CodeChallenge{
		UserID: "v2", ElectionID: "e1", CodeHash: "h", ExpiresAt: 300,
	}))

	purged, err := store.DeleteExpiredChallenges(200)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.GetChallenge("v1", "e1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetChallenge("v2", "e1")
	assert.NoError(t, err)
}

func TestVoterRoundTrip(t *testing.T) {
	store := newTestStore(t)

	descriptor := []float64{0.25, -0.5, 0.75}
	voter := &models.Voter{
		ID:             "v1",
		Email:          "ann@example.com",
		PasswordHash:   "digest",
		FaceDescriptor: descriptor,
	}
	require.NoError(t, store.CreateVoter(voter))

	loaded, err := store.VoterByID("v1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", loaded.Email)
	assert.Equal(t, descriptor, loaded.FaceDescriptor)

	byEmail, err := store.VoterByEmail("ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "v1", byEmail.ID)

	// Duplicate email is rejected by the unique index.
	err = store.CreateVoter(&models.Voter{ID: "v2", Email: "ann@example.com"})
	assert.Error(t, err)

	updated := []float64{1, 2, 3}
	require.NoError(t, store.SetFaceDescriptor("v1", updated))
	loaded, err = store.VoterByID("v1")
	require.NoError(t, err)
	assert.Equal(t, updated, loaded.FaceDescriptor)
}

func TestElectionRoundTrip(t *testing.T) {
	store := newTestStore(t)

	election := &models.Election{
		ID:        "e1",
		Title:     "Board Election",
		Status:    models.ElectionStatusActive,
		StartTime: 1700000000000,
		Candidates: []models.Candidate{
			{ID: "c1", Name: "Alice", Party: "Red"},
			{ID: "c2", Name: "Bob", Party: "Blue", ImageURL: "https://example.com/bob.png"},
		},
	}
	require.NoError(t, store.CreateElection(election))

	loaded, err := store.GetElection("e1")
	require.NoError(t, err)
	assert.Equal(t, "Board Election", loaded.Title)
	assert.True(t, loaded.IsOpen())
	require.Len(t, loaded.Candidates, 2)

	require.NoError(t, store.SetElectionStatus("e1", models.ElectionStatusClosed))
	loaded, err = store.GetElection("e1")
	require.NoError(t, err)
	assert.False(t, loaded.IsOpen())

	assert.ErrorIs(t, store.SetElectionStatus("missing", models.ElectionStatusClosed), ErrNotFound)
	_, err = store.GetElection("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
