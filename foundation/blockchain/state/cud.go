package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/broadcast"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/validate"
)

// SubmitBlock stores a locally produced block and sends it to the known
// peers. The broadcast report is returned for the caller to present, its
// failures are never the error of this call.
func (s *State) SubmitBlock(ctx context.Context, block database.Block) (broadcast.Report[bool], error) {
	if err := s.acceptBlock(block); err != nil {
		return nil, err
	}

	return broadcast.NewBlock(ctx, s.coordinator, block), nil
}

// SubmitTransaction stores a locally produced transaction as pending and
// sends it to the known peers.
func (s *State) SubmitTransaction(ctx context.Context, tx database.Transaction) (broadcast.Report[bool], error) {
	if err := s.acceptPendingTransaction(tx); err != nil {
		return nil, err
	}

	return broadcast.NewUntransaction(ctx, s.coordinator, tx), nil
}

// SubmitBlockTransaction stores a transaction included in a locally mined
// block and sends it to the known peers.
func (s *State) SubmitBlockTransaction(ctx context.Context, tx database.Transaction) (broadcast.Report[bool], error) {
	if err := s.acceptBlockTransaction(tx); err != nil {
		return nil, err
	}

	return broadcast.BlockTransaction(ctx, s.coordinator, tx), nil
}

// AddPeer stores the peer address and announces it to the known peers.
func (s *State) AddPeer(ctx context.Context, address string) (broadcast.Report[bool], error) {
	if s.registry.IsSelf(address) {
		s.evHandler("state: AddPeer: %s: is this node", address)
		return broadcast.Report[bool]{}, nil
	}

	normalized, err := s.acceptPeer(address)
	if err != nil {
		return nil, err
	}

	report := broadcast.AddNode(ctx, s.coordinator, normalized)

	s.signalPeerUpdates()

	return report, nil
}

// PingPeers checks every known peer is alive.
func (s *State) PingPeers(ctx context.Context) broadcast.Report[bool] {
	return broadcast.Ping(ctx, s.coordinator)
}

// =============================================================================

// AcceptBlock applies a block received from a peer.
func (s *State) AcceptBlock(ctx context.Context, block database.Block) error {
	return s.acceptBlock(block)
}

// AcceptPeer applies a peer address received from a peer.
func (s *State) AcceptPeer(ctx context.Context, address string) error {
	_, err := s.acceptPeer(address)
	return err
}

// AcceptPendingTransaction applies a pending transaction received from a peer.
func (s *State) AcceptPendingTransaction(ctx context.Context, tx database.Transaction) error {
	return s.acceptPendingTransaction(tx)
}

// AcceptBlockTransaction applies a confirmed transaction received from a peer.
func (s *State) AcceptBlockTransaction(ctx context.Context, tx database.Transaction) error {
	return s.acceptBlockTransaction(tx)
}

// =============================================================================

// The accept helpers are the single insertion path for records coming from
// a local submit, an inbound call or a sync. Records failing validation
// are rejected with validate.FieldErrors.

// acceptBlock stores the block. A block seen for the first time finalizes
// the pending transactions, so the pending collection is drained.
func (s *State) acceptBlock(block database.Block) error {
	if err := validate.Check(block); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}

	written, err := s.db.Blocks.Insert(block)
	if err != nil {
		return err
	}

	if !written {
		s.evHandler("state: acceptBlock: blk[%d]: %s: duplicate", block.Index, block.Hash)
		return nil
	}

	if err := s.db.Pending.Drain(); err != nil {
		return err
	}

	s.evHandler("state: acceptBlock: blk[%d]: %s: stored: pending drained", block.Index, block.Hash)

	return nil
}

// acceptPendingTransaction stores the transaction as pending unless it is
// already confirmed.
func (s *State) acceptPendingTransaction(tx database.Transaction) error {
	if err := validate.Check(tx); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	if s.db.Transactions.Contains(tx.Hash) {
		s.evHandler("state: acceptPendingTransaction: tx[%s]: already confirmed", tx.Hash)
		return nil
	}

	written, err := s.db.Pending.Insert(tx)
	if err != nil {
		return err
	}

	s.evHandler("state: acceptPendingTransaction: tx[%s]: new[%t]", tx.Hash, written)

	return nil
}

// acceptBlockTransaction stores the confirmed transaction.
func (s *State) acceptBlockTransaction(tx database.Transaction) error {
	if err := validate.Check(tx); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	written, err := s.db.Transactions.Insert(tx)
	if err != nil {
		return err
	}

	s.evHandler("state: acceptBlockTransaction: tx[%s]: new[%t]", tx.Hash, written)

	return nil
}

// acceptPeer stores the normalized peer address. This node's own address
// is never stored as a peer.
func (s *State) acceptPeer(address string) (string, error) {
	if s.registry.IsSelf(address) {
		s.evHandler("state: acceptPeer: %s: is this node", address)
		return s.registry.Normalize(address), nil
	}

	normalized, err := s.registry.Add(address)
	if err != nil {
		return "", err
	}

	s.evHandler("state: acceptPeer: %s: stored", normalized)

	return normalized, nil
}
