package ledger

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"votechain-backend/models"
)

func TestSealFindsQualifyingNonce(t *testing.T) {
	miner := NewMiner(2)
	block := &models.Block{
		Index:        1,
		Timestamp:    time.Now().UnixMilli(),
		Transactions: []models.Ballot{{ElectionID: "e1", CandidateID: "c1", VoterID: "v1"}},
		PreviousHash: "00aa",
	}

	miner.Seal(block)

	assert.True(t, models.MeetsDifficulty(block.Hash, 2))
	assert.Equal(t, block.CalculateHash(), block.Hash)
	assert.True(t, block.Validate(2))
}

func TestSealAtZeroDifficulty(t *testing.T) {
	block := &models.Block{Index: 1, Timestamp: 1, PreviousHash: "x"}
	NewMiner(0).Seal(block)

	assert.Equal(t, uint64(0), block.Nonce, "the first nonce must already qualify")
	assert.Equal(t, block.CalculateHash(), block.Hash)
}

func TestBuildAndSealBallot(t *testing.T) {
	factory := NewTransactionFactory()

	ballot := factory.BuildBallot("v1", "c1", "e1")
	assert.Empty(t, ballot.TransactionHash)
	assert.Equal(t, "v1", ballot.VoterID)
	assert.Equal(t, "c1", ballot.CandidateID)
	assert.Equal(t, "e1", ballot.ElectionID)

	factory.SealBallot(ballot, 5, 1700000000000)
	assert.Equal(t, uint64(5), ballot.BlockNumber)
	assert.Equal(t, int64(1700000000000), ballot.Timestamp)
	assert.Equal(t, ballot.ComputeTransactionHash(), ballot.TransactionHash)
}

func TestGenerateVerificationCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^VOTE-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateVerificationCode()
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 90, "codes should rarely collide")
}
