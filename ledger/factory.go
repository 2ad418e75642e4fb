package ledger

import (
	"fmt"
	"math/rand"

	"votechain-backend/models"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TransactionFactory builds ballots and seals their content hashes.
type TransactionFactory struct{}

func NewTransactionFactory() *TransactionFactory {
	return &TransactionFactory{}
}

// BuildBallot returns an unsealed ballot with a fresh verification code and
// an empty transaction hash.
func (f *TransactionFactory) BuildBallot(voterID, candidateID, electionID string) *models.Ballot {
	return &models.Ballot{
		ElectionID:      electionID,
		CandidateID:     candidateID,
		VoterID:         voterID,
		TransactionHash: "",
		VoteCode:        GenerateVerificationCode(),
	}
}

// SealBallot binds the ballot to its block position and computes the
// transaction hash over every field except the hash itself.
func (f *TransactionFactory) SealBallot(ballot *models.Ballot, blockNumber uint64, timestamp int64) *models.Ballot {
	ballot.BlockNumber = blockNumber
	ballot.Timestamp = timestamp
	ballot.TransactionHash = ballot.ComputeTransactionHash()
	return ballot
}

// GenerateVerificationCode returns a human-presentable VOTE-XXXX-XXXX code.
// It is a lookup key for public receipt verification, not an authorization
// token, so it does not need cryptographic randomness.
func GenerateVerificationCode() string {
	return fmt.Sprintf("VOTE-%s-%s", randomSegment(4), randomSegment(4))
}

func randomSegment(length int) string {
	segment := make([]byte, length)
	for i := range segment {
		segment[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(segment)
}
