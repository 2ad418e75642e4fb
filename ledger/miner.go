package ledger

import (
	"votechain-backend/models"
)

// Miner performs the proof-of-work search that seals a block. The search is
// deterministic for a fixed block and difficulty, so it is fully retryable.
type Miner struct {
	difficulty uint8
}

// NewMiner returns a miner for the given difficulty. Difficulty 2 expects
// about 256 hash attempts per block.
func NewMiner(difficulty uint8) *Miner {
	return &Miner{difficulty: difficulty}
}

func (m *Miner) Difficulty() uint8 {
	return m.difficulty
}

// Seal increments the nonce from 0 until the block hash carries the required
// leading zero hex characters, then returns the block with nonce and hash
// set. CPU-bound; callers keep it off request-serving goroutines.
func (m *Miner) Seal(block *models.Block) *models.Block {
	block.Nonce = 0
	block.Hash = block.CalculateHash()
	for !models.MeetsDifficulty(block.Hash, m.difficulty) {
		block.Nonce++
		block.Hash = block.CalculateHash()
	}
	return block
}
