package models

// CodeChallenge is the pending one-time code for a (voter, election) pair.
// At most one live challenge exists per pair; a new request overwrites the
// candidate binding, code hash and expiry and resets the attempt counter.
type CodeChallenge struct {
	UserID          string `json:"user_id"`
	ElectionID      string `json:"election_id"`
	CandidateID     string `json:"candidate_id"`
	CodeHash        string `json:"code_hash"`
	ExpiresAt       int64  `json:"expires_at"` // epoch milliseconds
	Attempts        int    `json:"attempts"`
	LastRequestTime int64  `json:"last_request_time"` // epoch milliseconds
	RequestCount    int    `json:"request_count"`
}
