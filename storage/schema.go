package storage

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed by the ledger and the commit
// protocol. Safe to call multiple times.
//
// The UNIQUE constraints are authoritative: the double-vote guarantee is the
// (voter_id, election_id) constraint on ballot, not any application check.
func CreateSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
-- Ledger blocks
CREATE TABLE IF NOT EXISTS block (
    idx INTEGER PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    transactions TEXT NOT NULL,
    previous_hash TEXT NOT NULL,
    hash TEXT NOT NULL UNIQUE,
    nonce INTEGER NOT NULL
);

-- Canonical ballots (arena; blocks embed the canonical serialization)
CREATE TABLE IF NOT EXISTS ballot (
    transaction_hash TEXT PRIMARY KEY,
    vote_code TEXT NOT NULL UNIQUE,
    election_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    block_number INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    UNIQUE (voter_id, election_id)
);

CREATE INDEX IF NOT EXISTS idx_ballot_election ON ballot(election_id);

-- Pending one-time codes, one per (user, election)
CREATE TABLE IF NOT EXISTS code_challenge (
    user_id TEXT NOT NULL,
    election_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    code_hash TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_request_time INTEGER NOT NULL,
    request_count INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (user_id, election_id)
);

CREATE INDEX IF NOT EXISTS idx_code_challenge_expiry ON code_challenge(expires_at);

-- Elections and candidates
CREATE TABLE IF NOT EXISTS election (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('OPEN', 'ACTIVE', 'CLOSED')),
    start_time INTEGER NOT NULL,
    end_time INTEGER
);

CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    party TEXT NOT NULL,
    image_url TEXT
);

CREATE INDEX IF NOT EXISTS idx_candidate_election ON candidate(election_id);

-- Registered voters
CREATE TABLE IF NOT EXISTS voter (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    face_descriptor TEXT
);
`
