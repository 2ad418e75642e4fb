package models

// Receipt is returned to the voter after a committed ballot. The signature
// is produced with the operator key over the transaction hash.
type Receipt struct {
	TransactionHash      string `json:"transaction_hash"`
	BlockNumber          uint64 `json:"block_number"`
	Timestamp            int64  `json:"timestamp"`
	VoteVerificationCode string `json:"vote_verification_code"`
	CandidateID          string `json:"candidate_id"`
	ElectionID           string `json:"election_id"`
	Signature            string `json:"signature,omitempty"`
}

// VoteLookup is the public verification view of a committed ballot. It
// reveals neither candidate nor voter identity.
type VoteLookup struct {
	Valid           bool   `json:"valid"`
	ElectionTitle   string `json:"election_title,omitempty"`
	Timestamp       int64  `json:"timestamp,omitempty"`
	BlockNumber     uint64 `json:"block_number,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}
