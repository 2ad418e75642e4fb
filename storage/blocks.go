package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"votechain-backend/models"
)

// AppendBlock persists a mined block. The primary key on idx and the unique
// hash column reject any concurrent double-append at the storage layer.
func (s *Store) AppendBlock(block *models.Block) error {
	transactions := models.CanonicalTransactions(block.Transactions)

	_, err := s.db.Exec(`
		INSERT INTO block (idx, timestamp, transactions, previous_hash, hash, nonce)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, int64(block.Index), block.Timestamp, string(transactions), block.PreviousHash, block.Hash, int64(block.Nonce))
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", block.Index, err)
	}
	return nil
}

// AppendBlockWithBallots persists a mined block and its ballots in one
// transaction, so a crash can never leave a ballot row without its block. A
// conflict on the (voter_id, election_id) constraint rolls back the whole
// block and maps to ErrDuplicateBallot.
func (s *Store) AppendBlockWithBallots(block *models.Block) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ballot := range block.Transactions {
		_, err := tx.Exec(`
			INSERT INTO ballot (transaction_hash, vote_code, election_id, candidate_id, voter_id, block_number, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, ballot.TransactionHash, ballot.VoteCode, ballot.ElectionID, ballot.CandidateID,
			ballot.VoterID, int64(ballot.BlockNumber), ballot.Timestamp)
		if err != nil {
			if isUniqueViolation(err, "ballot.voter_id", "ballot.election_id") {
				return ErrDuplicateBallot
			}
			return fmt.Errorf("failed to insert ballot: %w", err)
		}
	}

	transactions := models.CanonicalTransactions(block.Transactions)
	_, err = tx.Exec(`
		INSERT INTO block (idx, timestamp, transactions, previous_hash, hash, nonce)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, int64(block.Index), block.Timestamp, string(transactions), block.PreviousHash, block.Hash, int64(block.Nonce))
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", block.Index, err)
	}
	return tx.Commit()
}

// LatestBlock returns the block with the highest index, or ErrNotFound when
// the chain is empty.
func (s *Store) LatestBlock() (*models.Block, error) {
	row := s.db.QueryRow(`
		SELECT idx, timestamp, transactions, previous_hash, hash, nonce
		FROM block ORDER BY idx DESC LIMIT 1
	`)
	return scanBlock(row)
}

// BlockByIndex returns the block at the given index.
func (s *Store) BlockByIndex(index uint64) (*models.Block, error) {
	row := s.db.QueryRow(`
		SELECT idx, timestamp, transactions, previous_hash, hash, nonce
		FROM block WHERE idx = $1
	`, int64(index))
	return scanBlock(row)
}

// Chain returns every block ordered by index.
func (s *Store) Chain() ([]*models.Block, error) {
	rows, err := s.db.Query(`
		SELECT idx, timestamp, transactions, previous_hash, hash, nonce
		FROM block ORDER BY idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain: %w", err)
	}
	defer rows.Close()

	var blocks []*models.Block
	for rows.Next() {
		block, err := scanBlockRow(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// BlockCount returns the number of persisted blocks.
func (s *Store) BlockCount() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM block`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row *sql.Row) (*models.Block, error) {
	block, err := scanBlockRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return block, err
}

func scanBlockRow(row rowScanner) (*models.Block, error) {
	var (
		block        models.Block
		index        int64
		nonce        int64
		transactions string
	)
	if err := row.Scan(&index, &block.Timestamp, &transactions, &block.PreviousHash, &block.Hash, &nonce); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan block: %w", err)
	}
	block.Index = uint64(index)
	block.Nonce = uint64(nonce)

	if err := json.Unmarshal([]byte(transactions), &block.Transactions); err != nil {
		return nil, fmt.Errorf("failed to decode block %d transactions: %w", block.Index, err)
	}
	return &block, nil
}
