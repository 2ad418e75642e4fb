package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Ballot is a single recorded vote. It lives in the canonical ballot table
// and is embedded in exactly one block's transaction list.
type Ballot struct {
	ElectionID      string `json:"election_id"`
	CandidateID     string `json:"candidate_id"`
	VoterID         string `json:"voter_id"`
	TransactionHash string `json:"transaction_hash"`
	VoteCode        string `json:"vote_code"`
	BlockNumber     uint64 `json:"block_number"`
	Timestamp       int64  `json:"timestamp"`
}

// ballotDigest is the canonical hashing view of a ballot. The transaction
// hash itself is excluded to avoid self-reference.
type ballotDigest struct {
	ElectionID  string `json:"election_id"`
	CandidateID string `json:"candidate_id"`
	VoterID     string `json:"voter_id"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
	VoteCode    string `json:"vote_code"`
}

// ComputeTransactionHash returns the SHA-256 hex digest of the ballot's
// canonical serialization, excluding TransactionHash.
func (b *Ballot) ComputeTransactionHash() string {
	digest := ballotDigest{
		ElectionID:  b.ElectionID,
		CandidateID: b.CandidateID,
		VoterID:     b.VoterID,
		BlockNumber: b.BlockNumber,
		Timestamp:   b.Timestamp,
		VoteCode:    b.VoteCode,
	}

	// Marshaling a flat struct of strings and integers cannot fail.
	data, _ := json.Marshal(digest)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
