package miner_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/broadcast"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/miner"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const beneficiary = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"

// ledger records what the miner hands to the node.
type ledger struct {
	mu        sync.Mutex
	blocks    []database.Block
	pending   []database.Transaction
	confirmed []database.Transaction
}

func (l *ledger) CurrentBlocks() []database.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]database.Block(nil), l.blocks...)
}

func (l *ledger) PendingTransactions() []database.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]database.Transaction(nil), l.pending...)
}

func (l *ledger) SubmitBlockTransaction(ctx context.Context, tx database.Transaction) (broadcast.Report[bool], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmed = append(l.confirmed, tx)
	return nil, nil
}

func (l *ledger) SubmitBlock(ctx context.Context, block database.Block) (broadcast.Report[bool], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks = append(l.blocks, block)
	l.pending = nil
	return nil, nil
}

// =============================================================================

func Test_MineNext(t *testing.T) {
	t.Log("Given the need to mine the pending transactions into a block.")
	{
		tx := database.NewTransaction(1700000000, nil, []database.Output{database.NewOutput(beneficiary, 7, 1700000000)})
		l := ledger{pending: []database.Transaction{tx}}

		m, err := miner.New(miner.Config{
			Ledger:      &l,
			Beneficiary: beneficiary,
			Reward:      50,
			Difficulty:  2,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the miner: %v", failed, err)
		}

		first, err := m.MineNext(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if !strings.HasPrefix(first.Hash, "00") || database.HashBlock(first) != first.Hash {
			t.Fatalf("\t%s\tShould produce a solved hash: %s", failed, first.Hash)
		}
		t.Logf("\t%s\tShould produce a solved hash.", success)

		if first.Index != 1 || first.PreviousBlockHash != "" {
			t.Fatalf("\t%s\tShould start the chain at index 1: %+v", failed, first)
		}
		if len(first.TransactionHashes) != 2 || first.TransactionHashes[1] != tx.Hash {
			t.Fatalf("\t%s\tShould reference the reward and the pending transaction: %v", failed, first.TransactionHashes)
		}
		t.Logf("\t%s\tShould reference the reward and the pending transaction.", success)

		if len(l.confirmed) != 2 || len(l.pending) != 0 {
			t.Fatalf("\t%s\tShould confirm the transactions and drain pending: confirmed[%d] pending[%d]", failed, len(l.confirmed), len(l.pending))
		}
		t.Logf("\t%s\tShould confirm the transactions and drain pending.", success)

		if _, err := m.MineNext(context.Background()); !errors.Is(err, miner.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould report nothing to mine: %v", failed, err)
		}
		t.Logf("\t%s\tShould report nothing to mine.", success)

		l.pending = []database.Transaction{database.NewTransaction(1700000001, nil, nil)}
		second, err := m.MineNext(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a second block: %v", failed, err)
		}
		if second.Index != 2 || second.PreviousBlockHash != first.Hash {
			t.Fatalf("\t%s\tShould chain the second block to the first: %+v", failed, second)
		}
		t.Logf("\t%s\tShould chain the second block to the first.", success)
	}
}

func Test_POWCancelled(t *testing.T) {
	t.Log("Given the need to stop mining on request.")
	{
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := miner.POW(ctx, database.Block{Index: 1}, 64, nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould stop with the context error: %v", failed, err)
		}
		t.Logf("\t%s\tShould stop with the context error.", success)
	}
}

func Test_IsHashSolved(t *testing.T) {
	t.Log("Given the need to validate proof of work hashes.")
	{
		hash := "00000fee" + strings.Repeat("a", 56)

		if !miner.IsHashSolved(5, hash) {
			t.Fatalf("\t%s\tShould accept a hash with enough zeros.", failed)
		}
		if miner.IsHashSolved(6, hash) {
			t.Fatalf("\t%s\tShould reject a hash with too few zeros.", failed)
		}
		if miner.IsHashSolved(1, "0abc") {
			t.Fatalf("\t%s\tShould reject a short hash.", failed)
		}
		t.Logf("\t%s\tShould validate proof of work hashes.", success)
	}
}
