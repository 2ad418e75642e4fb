// Package ledger implements the append-only, hash-linked block ledger and
// its proof-of-work sealing. There is exactly one logical writer; all
// mine-and-append work is serialized through the commit path.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"votechain-backend/models"
	"votechain-backend/storage"
)

var (
	// ErrChainIntegrity indicates a broken single-writer invariant. It is
	// fatal: the ledger refuses further writes once tripped.
	ErrChainIntegrity = errors.New("chain integrity violation")

	// ErrLedgerHalted is returned for writes after an integrity violation.
	ErrLedgerHalted = errors.New("ledger halted pending investigation")
)

// Ledger owns block sequence integrity. Nothing outside it may append or
// reorder blocks.
type Ledger struct {
	store  *storage.Store
	mu     sync.Mutex
	halted bool
}

func New(store *storage.Store) *Ledger {
	return &Ledger{store: store}
}

// EnsureGenesis creates the genesis block if the chain is empty. Idempotent.
func (l *Ledger) EnsureGenesis() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.store.LatestBlock()
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load latest block: %w", err)
	}

	genesis := models.NewGenesisBlock()
	if err := l.store.AppendBlock(genesis); err != nil {
		return fmt.Errorf("failed to create genesis block: %w", err)
	}

	slog.Info("genesis block created", "hash", genesis.Hash)
	return nil
}

// LatestBlock returns the block with the highest index.
func (l *Ledger) LatestBlock() (*models.Block, error) {
	return l.store.LatestBlock()
}

// Append inserts a block only if it extends the current latest block by
// exactly one index and links to its hash. The block and its ballots land in
// one transaction; a ballot conflict rolls back the block and surfaces as
// storage.ErrDuplicateBallot without halting. Any other failure means a
// second writer raced this one, which is a fatal bug: the ledger halts.
func (l *Ledger) Append(block *models.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted {
		return ErrLedgerHalted
	}

	latest, err := l.store.LatestBlock()
	if err != nil {
		return fmt.Errorf("failed to load latest block: %w", err)
	}

	if block.Index != latest.Index+1 || block.PreviousHash != latest.Hash {
		l.halted = true
		slog.Error("chain integrity violation, halting ledger",
			"block_index", block.Index,
			"expected_index", latest.Index+1,
			"previous_hash", block.PreviousHash,
			"latest_hash", latest.Hash)
		return fmt.Errorf("%w: block %d does not extend block %d", ErrChainIntegrity, block.Index, latest.Index)
	}

	if err := l.store.AppendBlockWithBallots(block); err != nil {
		if errors.Is(err, storage.ErrDuplicateBallot) {
			return err
		}
		l.halted = true
		return fmt.Errorf("%w: %v", ErrChainIntegrity, err)
	}
	return nil
}

// Chain returns the full block sequence.
func (l *Ledger) Chain() ([]*models.Block, error) {
	return l.store.Chain()
}

// BlockByIndex returns one block.
func (l *Ledger) BlockByIndex(index uint64) (*models.Block, error) {
	return l.store.BlockByIndex(index)
}

// Verify re-validates the whole persisted chain at the given difficulty.
func (l *Ledger) Verify(difficulty uint8) (bool, error) {
	blocks, err := l.store.Chain()
	if err != nil {
		return false, err
	}
	return models.ValidateChain(blocks, difficulty), nil
}

// Halted reports whether an integrity violation stopped further writes.
func (l *Ledger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}
