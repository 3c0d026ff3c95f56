// Package miner batches the pending transactions into a block and performs
// the proof of work before handing the block to the node.
package miner

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/broadcast"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// DefaultDifficulty is the number of leading zeros a block hash needs.
const DefaultDifficulty = 5

// ErrNoTransactions is returned when there is nothing to mine.
var ErrNoTransactions = errors.New("no pending transactions to mine")

// EventHandler defines a function that is called when events
// occur in the processing of mining.
type EventHandler func(v string, args ...any)

// Ledger represents the behavior required from the node to mine blocks.
type Ledger interface {
	CurrentBlocks() []database.Block
	PendingTransactions() []database.Transaction
	SubmitBlockTransaction(ctx context.Context, tx database.Transaction) (broadcast.Report[bool], error)
	SubmitBlock(ctx context.Context, block database.Block) (broadcast.Report[bool], error)
}

// Config represents the configuration required to construct a miner.
type Config struct {
	Ledger      Ledger
	Beneficiary string
	Reward      uint32
	Difficulty  uint
	Interval    time.Duration
	EvHandler   EventHandler
}

// Miner produces blocks from the pending transactions of a node.
type Miner struct {
	ledger      Ledger
	beneficiary string
	reward      uint32
	difficulty  uint
	interval    time.Duration
	evHandler   EventHandler
}

// New constructs a miner.
func New(cfg Config) (*Miner, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}

	difficulty := cfg.Difficulty
	if difficulty == 0 {
		difficulty = DefaultDifficulty
	}
	if difficulty > 64 {
		return nil, fmt.Errorf("difficulty %d is larger than the hash", difficulty)
	}

	if cfg.Beneficiary != "" && !database.IsAddress(cfg.Beneficiary) {
		return nil, fmt.Errorf("invalid beneficiary %q", cfg.Beneficiary)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	m := Miner{
		ledger:      cfg.Ledger,
		beneficiary: cfg.Beneficiary,
		reward:      cfg.Reward,
		difficulty:  difficulty,
		interval:    interval,
		evHandler:   ev,
	}

	return &m, nil
}

// Run mines blocks until the context is cancelled. When there is nothing
// to mine the miner waits for the interval before looking again.
func (m *Miner) Run(ctx context.Context) error {
	m.evHandler("miner: Run: started: difficulty[%d]", m.difficulty)
	defer m.evHandler("miner: Run: completed")

	for {
		_, err := m.MineNext(ctx)
		switch {
		case err == nil:
			continue

		case ctx.Err() != nil:
			return nil

		case errors.Is(err, ErrNoTransactions):

		default:
			m.evHandler("miner: Run: ERROR: %s", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.interval):
		}
	}
}

// MineNext mines one block over the current pending transactions. The
// transactions are recorded as confirmed before the block is submitted,
// and submitting the block drains the pending collection.
func (m *Miner) MineNext(ctx context.Context) (database.Block, error) {
	pending := m.ledger.PendingTransactions()
	if len(pending) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	now := uint64(time.Now().Unix())

	block := database.Block{
		Index:     1,
		Timestamp: now,
	}
	if latest, exists := database.LatestBlock(m.ledger.CurrentBlocks()); exists {
		block.Index = latest.Index + 1
		block.PreviousBlockHash = latest.Hash
	}

	// The reward input references the block position so two rewards mined
	// in the same second never share a hash.
	txs := pending
	if m.beneficiary != "" && m.reward > 0 {
		coinbase := database.Input{SourceHash: fmt.Sprintf("coinbase:%d:%s", block.Index, block.PreviousBlockHash)}
		reward := database.NewTransaction(now, []database.Input{coinbase}, []database.Output{database.NewOutput(m.beneficiary, m.reward, now)})
		txs = append([]database.Transaction{reward}, pending...)
	}

	block.TransactionHashes = make([]string, len(txs))
	for i, tx := range txs {
		block.TransactionHashes[i] = tx.Hash
	}

	start := time.Now()

	block, err := POW(ctx, block, m.difficulty, m.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	m.evHandler("miner: MineNext: blk[%d]: %s: txs[%d]: duration[%v]", block.Index, block.Hash, len(txs), time.Since(start))

	for _, tx := range txs {
		if _, err := m.ledger.SubmitBlockTransaction(ctx, tx); err != nil {
			return database.Block{}, fmt.Errorf("recording transaction %s: %w", tx.Hash, err)
		}
	}

	report, err := m.ledger.SubmitBlock(ctx, block)
	if err != nil {
		return database.Block{}, fmt.Errorf("submitting block: %w", err)
	}

	for _, failure := range report.Failures() {
		m.evHandler("miner: MineNext: blk[%d]: peer[%s]: WARNING: %s", block.Index, failure.Peer, failure.Err)
	}

	return block, nil
}

// =============================================================================

// POW does the work of mining to find a nonce that gives the block a hash
// with the specified number of leading zeros.
func POW(ctx context.Context, block database.Block, difficulty uint, ev func(v string, args ...any)) (database.Block, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("miner: POW: MINING: started: blk[%d]", block.Index)
	defer ev("miner: POW: MINING: completed: blk[%d]", block.Index)

	// Choose a random starting point for the nonce. After this, the nonce
	// will be incremented by 1 until a solution is found.
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return database.Block{}, err
	}
	block.Nonce = binary.BigEndian.Uint32(seed[:])

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("miner: POW: MINING: attempts[%d]", attempts)
		}

		// Did we get cancelled trying to solve the problem.
		if ctx.Err() != nil {
			ev("miner: POW: MINING: CANCELLED")
			return database.Block{}, ctx.Err()
		}

		hash := database.HashBlock(block)
		if !IsHashSolved(difficulty, hash) {
			block.Nonce++
			continue
		}

		block.Hash = hash

		ev("miner: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", block.PreviousBlockHash, hash, attempts)

		return block, nil
	}
}

// IsHashSolved checks the hash starts with the difficulty number of zeros.
func IsHashSolved(difficulty uint, hash string) bool {
	if len(hash) != 64 || difficulty > 64 {
		return false
	}

	return hash[:difficulty] == strings.Repeat("0", int(difficulty))
}
