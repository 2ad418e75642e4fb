package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// GenesisPreviousHash is the sentinel previous-hash of the block at index 0.
const GenesisPreviousHash = "0"

// Block is one link of the append-only ledger. Blocks are immutable once
// appended; only appension is allowed.
type Block struct {
	Index        uint64   `json:"index"`
	Timestamp    int64    `json:"timestamp"` // epoch milliseconds
	Transactions []Ballot `json:"transactions"`
	PreviousHash string   `json:"previous_hash"`
	Hash         string   `json:"hash"`
	Nonce        uint64   `json:"nonce"`
}

// NewGenesisBlock builds the index-0 block. Genesis carries no transactions
// and is not required to satisfy proof-of-work.
func NewGenesisBlock() *Block {
	genesis := &Block{
		Index:        0,
		Timestamp:    time.Now().UnixMilli(),
		Transactions: []Ballot{},
		PreviousHash: GenesisPreviousHash,
		Nonce:        0,
	}
	genesis.Hash = genesis.CalculateHash()
	return genesis
}

// CanonicalTransactions returns the canonical serialization of a transaction
// list as it enters the block hash.
func CanonicalTransactions(transactions []Ballot) []byte {
	if transactions == nil {
		transactions = []Ballot{}
	}
	data, _ := json.Marshal(transactions)
	return data
}

// CalculateHash returns the SHA-256 hex digest over the concatenation of
// index, previous hash, timestamp, canonical transactions and nonce.
func (b *Block) CalculateHash() string {
	buffer := new(bytes.Buffer)
	buffer.WriteString(strconv.FormatUint(b.Index, 10))
	buffer.WriteString(b.PreviousHash)
	buffer.WriteString(strconv.FormatInt(b.Timestamp, 10))
	buffer.Write(CanonicalTransactions(b.Transactions))
	buffer.WriteString(strconv.FormatUint(b.Nonce, 10))

	hash := sha256.Sum256(buffer.Bytes())
	return hex.EncodeToString(hash[:])
}

// MeetsDifficulty reports whether the hash's leading difficulty hex
// characters are all zero.
func MeetsDifficulty(hash string, difficulty uint8) bool {
	if int(difficulty) > len(hash) {
		return false
	}
	return hash[:difficulty] == strings.Repeat("0", int(difficulty))
}

// Validate checks that the stored hash reproduces from the block's contents
// and, for non-genesis blocks, that it satisfies the difficulty bound.
func (b *Block) Validate(difficulty uint8) bool {
	if b.CalculateHash() != b.Hash {
		return false
	}
	if b.Index == 0 {
		return true
	}
	return MeetsDifficulty(b.Hash, difficulty)
}

// ValidateChain validates hash reproduction, difficulty, index continuity
// and previous-hash linkage across the whole chain.
func ValidateChain(blocks []*Block, difficulty uint8) bool {
	if len(blocks) == 0 {
		return true
	}

	if blocks[0].Index != 0 || blocks[0].PreviousHash != GenesisPreviousHash {
		return false
	}
	if !blocks[0].Validate(difficulty) {
		return false
	}

	for i := 1; i < len(blocks); i++ {
		current := blocks[i]
		previous := blocks[i-1]

		if !current.Validate(difficulty) {
			return false
		}
		if current.PreviousHash != previous.Hash {
			return false
		}
		if current.Index != previous.Index+1 {
			return false
		}
	}

	return true
}
