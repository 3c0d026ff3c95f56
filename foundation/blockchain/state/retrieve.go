package state

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Status is a snapshot of the node used for reporting.
type Status struct {
	Host         string `json:"host"`
	Phase        string `json:"phase"`
	LatestIndex  uint32 `json:"latest_index"`
	LatestHash   string `json:"latest_hash"`
	Blocks       int    `json:"blocks"`
	Transactions int    `json:"transactions"`
	Pending      int    `json:"pending"`
	KnownPeers   int    `json:"known_peers"`
}

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveDatabase returns the set of repositories the node works against.
func (s *State) RetrieveDatabase() *database.Database {
	return s.db
}

// RetrieveStatus returns the current status of the node.
func (s *State) RetrieveStatus() Status {
	blocks := s.db.Blocks.Records()

	status := Status{
		Host:         s.host,
		Phase:        s.Phase().String(),
		Blocks:       len(blocks),
		Transactions: s.db.Transactions.Count(),
		Pending:      s.db.Pending.Count(),
		KnownPeers:   len(s.registry.List()),
	}

	if latest, exists := database.LatestBlock(blocks); exists {
		status.LatestIndex = latest.Index
		status.LatestHash = latest.Hash
	}

	return status
}

// LatestBlock returns the block with the highest index.
func (s *State) LatestBlock() (database.Block, bool) {
	return database.LatestBlock(s.db.Blocks.Records())
}

// FindBlock returns the block stored with the specified hash.
func (s *State) FindBlock(hash string) (database.Block, bool) {
	return s.db.Blocks.FindByHash(hash)
}

// FindTransaction returns the confirmed or pending transaction stored with
// the specified hash.
func (s *State) FindTransaction(hash string) (database.Transaction, bool) {
	if tx, exists := s.db.Transactions.FindByHash(hash); exists {
		return tx, true
	}
	return s.db.Pending.FindByHash(hash)
}

// ListPeers returns all known peer addresses.
func (s *State) ListPeers() []string {
	return s.registry.List()
}

// CurrentBlocks returns the stored blocks in insertion order.
func (s *State) CurrentBlocks() []database.Block {
	return s.db.Blocks.Records()
}

// CurrentTransactions returns the confirmed transactions.
func (s *State) CurrentTransactions() []database.Transaction {
	return s.db.Transactions.Records()
}

// PendingTransactions returns the transactions not yet in a block.
func (s *State) PendingTransactions() []database.Transaction {
	return s.db.Pending.Records()
}

// =============================================================================

// Blocks implements the rpc.Backend interface.
func (s *State) Blocks() []database.Block {
	return s.CurrentBlocks()
}

// Transactions implements the rpc.Backend interface.
func (s *State) Transactions() []database.Transaction {
	return s.CurrentTransactions()
}

// KnownPeers implements the rpc.Backend interface.
func (s *State) KnownPeers() []string {
	return s.registry.List()
}
