package state_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/rpc"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const receiver = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

// newNode constructs a node over a fresh data directory.
func newNode(t *testing.T, knownPeers ...string) *state.State {
	log, err := logger.New("TEST")
	ifErrFailNow(t, err)
	t.Cleanup(func() { log.Sync() })

	evts := events.New()
	t.Cleanup(evts.Shutdown)

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	db, err := database.New(filepath.Join(t.TempDir(), "data"), ev)
	ifErrFailNow(t, err)

	st, err := state.New(state.Config{
		Database:           db,
		Scheme:             "tcp://",
		KnownPeers:         knownPeers,
		MergeStrategy:      "accept-missing",
		CallTimeout:        2 * time.Second,
		MaxConcurrent:      4,
		PeerUpdateInterval: time.Hour,
		EvHandler:          ev,
	})
	ifErrFailNow(t, err)

	return st
}

// serve exposes the node's procedures and returns its peer address.
func serve(t *testing.T, st *state.State) string {
	srv, err := rpc.NewServer(st, nil)
	ifErrFailNow(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return "tcp://" + strings.TrimPrefix(ts.URL, "http://")
}

// deadPeer returns the address of a peer that is no longer listening.
func deadPeer() string {
	ts := httptest.NewServer(nil)
	address := "tcp://" + strings.TrimPrefix(ts.URL, "http://")
	ts.Close()

	return address
}

func newTx(amount uint32) database.Transaction {
	const ts = 1700000000
	return database.NewTransaction(ts, nil, []database.Output{database.NewOutput(receiver, amount, ts)})
}

func newBlock(index uint32, previous string, txs ...database.Transaction) database.Block {
	block := database.Block{
		Index:             index,
		Timestamp:         1700000000,
		TransactionHashes: []string{},
		PreviousBlockHash: previous,
	}
	for _, tx := range txs {
		block.TransactionHashes = append(block.TransactionHashes, tx.Hash)
	}
	block.Hash = database.HashBlock(block)
	return block
}

// =============================================================================

func Test_Lifecycle(t *testing.T) {
	t.Log("Given the need to move a node through its lifecycle.")
	{
		st := newNode(t)

		if st.Phase() != state.Initializing {
			t.Fatalf("\t%s\tShould be initializing after construction: got %s", failed, st.Phase())
		}
		t.Logf("\t%s\tShould be initializing after construction.", success)

		st.Start(context.Background())
		if st.Phase() != state.Serving {
			t.Fatalf("\t%s\tShould be serving after start: got %s", failed, st.Phase())
		}
		t.Logf("\t%s\tShould be serving after start.", success)

		ifErrFailNow(t, st.Shutdown())
		ifErrFailNow(t, st.Shutdown())
		if st.Phase() != state.Terminated {
			t.Fatalf("\t%s\tShould be terminated after shutdown: got %s", failed, st.Phase())
		}
		t.Logf("\t%s\tShould be terminated after shutdown.", success)
	}
}

func Test_SubmitTransactionPartialFailure(t *testing.T) {
	t.Log("Given the need to propagate a transaction to three peers.")
	{
		t.Logf("\tWhen one of the peers is unreachable.")
		{
			peer1 := newNode(t)
			peer2 := newNode(t)

			local := newNode(t, serve(t, peer1), serve(t, peer2), deadPeer())
			tx := newTx(10)

			report, err := local.SubmitTransaction(context.Background(), tx)
			if err != nil {
				t.Fatalf("\t%s\tShould not fail the local insert: %v", failed, err)
			}
			t.Logf("\t%s\tShould not fail the local insert.", success)

			if len(report.Failures()) != 1 || len(report.Successes()) != 2 {
				t.Fatalf("\t%s\tShould report one failure and two successes: %+v", failed, report)
			}
			t.Logf("\t%s\tShould report one failure and two successes.", success)

			pending := local.PendingTransactions()
			if len(pending) != 1 || pending[0].Hash != tx.Hash {
				t.Fatalf("\t%s\tShould keep the transaction pending locally: %v", failed, pending)
			}
			t.Logf("\t%s\tShould keep the transaction pending locally.", success)

			for i, p := range []*state.State{peer1, peer2} {
				if _, exists := p.FindTransaction(tx.Hash); !exists {
					t.Fatalf("\t%s\tShould deliver the transaction to peer %d.", failed, i)
				}
			}
			t.Logf("\t%s\tShould deliver the transaction to the live peers.", success)
		}
	}
}

func Test_AcceptBlock(t *testing.T) {
	t.Log("Given the need to accept a block that finalizes pending transactions.")
	{
		st := newNode(t)
		ctx := context.Background()

		tx := newTx(5)
		ifErrFailNow(t, st.AcceptPendingTransaction(ctx, tx))

		block := newBlock(1, "", tx)
		ifErrFailNow(t, st.AcceptBlock(ctx, block))

		if n := len(st.PendingTransactions()); n != 0 {
			t.Fatalf("\t%s\tShould drain the pending transactions: got %d", failed, n)
		}
		t.Logf("\t%s\tShould drain the pending transactions.", success)

		later := newTx(6)
		ifErrFailNow(t, st.AcceptPendingTransaction(ctx, later))
		ifErrFailNow(t, st.AcceptBlock(ctx, block))

		if n := len(st.PendingTransactions()); n != 1 {
			t.Fatalf("\t%s\tShould not drain on a duplicate block: got %d", failed, n)
		}
		if n := len(st.CurrentBlocks()); n != 1 {
			t.Fatalf("\t%s\tShould store the block once: got %d", failed, n)
		}
		t.Logf("\t%s\tShould ignore a duplicate block.", success)

		ifErrFailNow(t, st.AcceptBlockTransaction(ctx, tx))
		ifErrFailNow(t, st.AcceptPendingTransaction(ctx, tx))
		if n := len(st.PendingTransactions()); n != 1 {
			t.Fatalf("\t%s\tShould not hold a confirmed transaction as pending: got %d", failed, n)
		}
		t.Logf("\t%s\tShould not hold a confirmed transaction as pending.", success)
	}
}

func Test_Sync(t *testing.T) {
	t.Log("Given the need to reconcile a new node with its peers.")
	{
		ctx := context.Background()

		remote := newNode(t)

		confirmed := newTx(1)
		genesis := newBlock(0, "", confirmed)
		next := newBlock(1, genesis.Hash)
		pending := newTx(2)
		learned := deadPeer()

		ifErrFailNow(t, remote.AcceptBlock(ctx, genesis))
		ifErrFailNow(t, remote.AcceptBlock(ctx, next))
		ifErrFailNow(t, remote.AcceptBlockTransaction(ctx, confirmed))
		ifErrFailNow(t, remote.AcceptPendingTransaction(ctx, pending))
		ifErrFailNow(t, remote.AcceptPeer(ctx, learned))

		local := newNode(t, serve(t, remote), deadPeer())
		ifErrFailNow(t, local.AcceptBlock(ctx, genesis))

		local.Sync(ctx)

		if local.Phase() != state.Serving {
			t.Fatalf("\t%s\tShould be serving after a sync: got %s", failed, local.Phase())
		}
		t.Logf("\t%s\tShould be serving after a sync.", success)

		blocks := local.CurrentBlocks()
		if len(blocks) != 2 || blocks[1].Hash != next.Hash {
			t.Fatalf("\t%s\tShould pull only the missing block: %v", failed, blocks)
		}
		t.Logf("\t%s\tShould pull only the missing block.", success)

		if txs := local.CurrentTransactions(); len(txs) != 1 || txs[0].Hash != confirmed.Hash {
			t.Fatalf("\t%s\tShould pull the confirmed transactions: %v", failed, txs)
		}
		if txs := local.PendingTransactions(); len(txs) != 1 || txs[0].Hash != pending.Hash {
			t.Fatalf("\t%s\tShould pull the pending transactions: %v", failed, txs)
		}
		t.Logf("\t%s\tShould pull the transactions.", success)

		found := false
		for _, address := range local.ListPeers() {
			if address == learned {
				found = true
			}
		}
		if !found {
			t.Fatalf("\t%s\tShould learn the peers of its peers: %v", failed, local.ListPeers())
		}
		t.Logf("\t%s\tShould learn the peers of its peers.", success)

		local.Sync(ctx)
		if n := len(local.CurrentBlocks()); n != 2 {
			t.Fatalf("\t%s\tShould be idempotent on a second sync: got %d blocks", failed, n)
		}
		t.Logf("\t%s\tShould be idempotent on a second sync.", success)
	}
}

func Test_SyncSkipsInvalidRecords(t *testing.T) {
	t.Log("Given the need to apply the same checks to synced records as to inbound calls.")
	{
		ctx := context.Background()

		remote := newNode(t)

		valid := newBlock(1, "")
		ifErrFailNow(t, remote.AcceptBlock(ctx, valid))

		// Records written straight to the remote's collections bypass the
		// checks the remote would apply itself.
		db := remote.RetrieveDatabase()
		ifErrFailNow(t, db.Blocks.Submit(database.Block{Index: 7}))
		ifErrFailNow(t, db.Transactions.Submit(database.Transaction{Outputs: []database.Output{{Amount: 1}}}))
		ifErrFailNow(t, db.Pending.Submit(database.Transaction{Outputs: []database.Output{{Amount: 2}}}))

		local := newNode(t, serve(t, remote))
		local.Sync(ctx)

		blocks := local.CurrentBlocks()
		if len(blocks) != 1 || blocks[0].Hash != valid.Hash {
			t.Fatalf("\t%s\tShould store only the valid block: %v", failed, blocks)
		}
		t.Logf("\t%s\tShould store only the valid block.", success)

		if _, exists := local.FindBlock(""); exists {
			t.Fatalf("\t%s\tShould not store a block without a hash.", failed)
		}
		t.Logf("\t%s\tShould not store a block without a hash.", success)

		if n := len(local.CurrentTransactions()); n != 0 {
			t.Fatalf("\t%s\tShould not store a transaction without a hash: got %d", failed, n)
		}
		if n := len(local.PendingTransactions()); n != 0 {
			t.Fatalf("\t%s\tShould not store a pending transaction without a hash: got %d", failed, n)
		}
		t.Logf("\t%s\tShould not store transactions without a hash.", success)

		if err := local.AcceptBlock(ctx, database.Block{Index: 7}); err == nil {
			t.Fatalf("\t%s\tShould reject the same block from an inbound call.", failed)
		}
		t.Logf("\t%s\tShould reject the same block from an inbound call.", success)
	}
}

func Test_AddSelf(t *testing.T) {
	t.Log("Given the need to never announce this node as its own peer.")
	{
		const host = "127.0.0.1:7000"

		remote := newNode(t)

		db, err := database.New(filepath.Join(t.TempDir(), "data"), nil)
		ifErrFailNow(t, err)

		local, err := state.New(state.Config{
			Host:        host,
			Database:    db,
			KnownPeers:  []string{serve(t, remote)},
			CallTimeout: 2 * time.Second,
		})
		ifErrFailNow(t, err)

		report, err := local.AddPeer(context.Background(), "tcp://"+host)
		ifErrFailNow(t, err)

		if len(report) != 0 {
			t.Fatalf("\t%s\tShould not broadcast this node's own address: %+v", failed, report)
		}
		t.Logf("\t%s\tShould not broadcast this node's own address.", success)

		if peers := remote.ListPeers(); len(peers) != 0 {
			t.Fatalf("\t%s\tShould leave the remote peers untouched: %v", failed, peers)
		}
		t.Logf("\t%s\tShould leave the remote peers untouched.", success)

		for _, address := range local.ListPeers() {
			if address == "tcp://"+host {
				t.Fatalf("\t%s\tShould not store this node as a peer.", failed)
			}
		}
		t.Logf("\t%s\tShould not store this node as a peer.", success)
	}
}

func Test_AddPeer(t *testing.T) {
	t.Log("Given the need to announce a new peer.")
	{
		remote := newNode(t)
		local := newNode(t, serve(t, remote))

		report, err := local.AddPeer(context.Background(), "127.0.0.1:9000")
		ifErrFailNow(t, err)

		if len(report.Successes()) < 1 {
			t.Fatalf("\t%s\tShould announce the peer to the known peers: %+v", failed, report)
		}
		t.Logf("\t%s\tShould announce the peer to the known peers.", success)

		found := false
		for _, address := range remote.ListPeers() {
			if address == "tcp://127.0.0.1:9000" {
				found = true
			}
		}
		if !found {
			t.Fatalf("\t%s\tShould store the normalized peer on the remote: %v", failed, remote.ListPeers())
		}
		t.Logf("\t%s\tShould store the normalized peer on the remote.", success)

		if _, err := local.AddPeer(context.Background(), ""); err == nil {
			t.Fatalf("\t%s\tShould reject an empty address.", failed)
		}
		t.Logf("\t%s\tShould reject an empty address.", success)
	}
}

func Test_UnknownStrategy(t *testing.T) {
	t.Log("Given the need to fail fast on a bad merge strategy.")
	{
		db, err := database.New(filepath.Join(t.TempDir(), "data"), nil)
		ifErrFailNow(t, err)

		if _, err := state.New(state.Config{Database: db, MergeStrategy: "longest-chain"}); err == nil {
			t.Fatalf("\t%s\tShould fail to construct the node.", failed)
		}
		t.Logf("\t%s\tShould fail to construct the node.", success)
	}
}
