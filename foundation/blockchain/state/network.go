package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/broadcast"
	"github.com/ardanlabs/ledger/foundation/blockchain/rpc"
	"github.com/ardanlabs/ledger/foundation/validate"
)

// Sync pulls the peers, blocks and transactions of every known peer and
// inserts whatever the merge strategy accepts. A peer that can't be
// reached is logged and skipped. The node is serving once Sync returns.
func (s *State) Sync(ctx context.Context) {
	s.setPhase(Syncing)
	s.syncPeers(ctx)
	s.setPhase(Serving)
}

// syncPeers runs one reconcile pass over the current roster.
func (s *State) syncPeers(ctx context.Context) {
	s.evHandler("state: sync: started")
	defer s.evHandler("state: sync: completed")

	for _, address := range s.registry.Copy() {
		if ctx.Err() != nil {
			s.evHandler("state: sync: abandoned: %s", ctx.Err())
			return
		}

		if err := s.syncPeer(ctx, address); err != nil {
			s.evHandler("state: sync: peer[%s]: ERROR: %s", address, err)
		}
	}
}

// syncPeer reconciles local state with a single peer.
func (s *State) syncPeer(ctx context.Context, address string) error {
	cln, err := rpc.NewClient(address, s.callTimeout)
	if err != nil {
		return err
	}

	// Add new peers to this node's list.
	nodes, err := cln.GetNodes(ctx)
	if err != nil {
		return fmt.Errorf("get_nodes: %w", err)
	}
	for _, node := range nodes {
		if s.registry.IsSelf(node) || s.registry.Contains(node) {
			continue
		}
		if _, err := s.acceptPeer(node); err != nil {
			s.evHandler("state: sync: peer[%s]: add node %s: ERROR: %s", address, node, err)
		}
	}

	// If this peer has blocks we don't have, we need to add them.
	blocks, err := cln.GetBlockchain(ctx)
	if err != nil {
		return fmt.Errorf("get_blockchain: %w", err)
	}
	for _, block := range s.strategy.Blocks(s.db.Blocks.Records(), blocks) {
		if err := s.acceptBlock(block); err != nil {
			if validate.IsFieldErrors(err) {
				s.evHandler("state: sync: peer[%s]: skipping blk[%d]: %s", address, block.Index, err)
				continue
			}
			return fmt.Errorf("storing block %s: %w", block.Hash, err)
		}
	}

	txs, err := cln.GetTransactions(ctx)
	if err != nil {
		return fmt.Errorf("get_transactions: %w", err)
	}
	for _, tx := range s.strategy.Transactions(s.db.Transactions.Records(), txs) {
		if err := s.acceptBlockTransaction(tx); err != nil {
			if validate.IsFieldErrors(err) {
				s.evHandler("state: sync: peer[%s]: skipping tx[%s]: %s", address, tx.Hash, err)
				continue
			}
			return fmt.Errorf("storing transaction %s: %w", tx.Hash, err)
		}
	}

	pending, err := cln.GetUntransactions(ctx)
	if err != nil {
		return fmt.Errorf("get_untransactions: %w", err)
	}
	for _, tx := range s.strategy.Transactions(s.db.Pending.Records(), pending) {
		if err := s.acceptPendingTransaction(tx); err != nil {
			if validate.IsFieldErrors(err) {
				s.evHandler("state: sync: peer[%s]: skipping pending tx[%s]: %s", address, tx.Hash, err)
				continue
			}
			return fmt.Errorf("storing pending transaction %s: %w", tx.Hash, err)
		}
	}

	s.evHandler("state: sync: peer[%s]: nodes[%d] blocks[%d] txs[%d] pending[%d]", address, len(nodes), len(blocks), len(txs), len(pending))

	return nil
}

// announceSelf lets the known peers know this node is available.
func (s *State) announceSelf(ctx context.Context) {
	if s.host == "" {
		return
	}

	report := broadcast.AddNode(ctx, s.coordinator, s.registry.Normalize(s.host))
	for _, failure := range report.Failures() {
		s.evHandler("state: announceSelf: peer[%s]: ERROR: %s", failure.Peer, failure.Err)
	}
}
