package database

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Block represents a group of transactions batched together by a miner.
// Blocks reference their transactions by hash so the blocks collection can
// be persisted and reloaded independently of the transactions collection.
type Block struct {
	Index             uint32   `json:"index"`
	Timestamp         uint64   `json:"timestamp"`
	TransactionHashes []string `json:"tx"`
	PreviousBlockHash string   `json:"previous_block"`
	Nonce             uint32   `json:"nonce"`
	Hash              string   `json:"hash" validate:"required"`
}

// Digest implements the storage.Record interface.
func (b Block) Digest() string {
	return b.Hash
}

// HashBlock returns the content hash for the block. The hash field itself
// is not part of the hashed content.
func HashBlock(b Block) string {
	b.Hash = ""
	return hashValue(b)
}

// LatestBlock returns the block with the highest index. When two blocks
// share the highest index, the first one stored wins.
func LatestBlock(blocks []Block) (Block, bool) {
	if len(blocks) == 0 {
		return Block{}, false
	}

	latest := blocks[0]
	for _, block := range blocks[1:] {
		if block.Index > latest.Index {
			latest = block
		}
	}

	return latest, true
}

// =============================================================================

// hashValue returns a hex-encoded sha256 of the JSON form of the value.
func hashValue(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
