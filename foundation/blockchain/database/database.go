// Package database handles the set of ledger collections a node keeps on
// disk: blocks, confirmed transactions, pending transactions, known peers
// and local accounts.
package database

import (
	"fmt"
	"os"
	"path/filepath"
)

// Set of collection roles. Each role is persisted in its own snapshot file.
const (
	RoleBlocks              = "blocks"
	RoleTransactions        = "transactions"
	RolePendingTransactions = "pending-transactions"
	RolePeers               = "peers"
	RoleAccounts            = "accounts"
)

// PeerAddress represents a normalized network address of a known node.
// Peers have no content hash of their own so the address is its identity.
type PeerAddress string

// Digest implements the storage.Record interface.
func (p PeerAddress) Digest() string {
	return string(p)
}

// =============================================================================

// Database is the set of repositories a node works against. It is
// constructed once at startup and handed to every component that needs it.
type Database struct {
	dataDir string

	Blocks       *Repository[Block]
	Transactions *Repository[Transaction]
	Pending      *Repository[Transaction]
	Peers        *Repository[PeerAddress]
	Accounts     *Repository[Account]
}

// New constructs the repositories under the specified data directory.
func New(dataDir string, evHandler func(v string, args ...any)) (*Database, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := func(role string) string {
		return filepath.Join(dataDir, role+".json")
	}

	blocks, err := NewRepository[Block](RoleBlocks, path(RoleBlocks), evHandler)
	if err != nil {
		return nil, err
	}

	trans, err := NewRepository[Transaction](RoleTransactions, path(RoleTransactions), evHandler)
	if err != nil {
		return nil, err
	}

	pending, err := NewRepository[Transaction](RolePendingTransactions, path(RolePendingTransactions), evHandler)
	if err != nil {
		return nil, err
	}

	peers, err := NewRepository[PeerAddress](RolePeers, path(RolePeers), evHandler)
	if err != nil {
		return nil, err
	}

	accounts, err := NewRepository[Account](RoleAccounts, path(RoleAccounts), evHandler)
	if err != nil {
		return nil, err
	}

	db := Database{
		dataDir:      dataDir,
		Blocks:       blocks,
		Transactions: trans,
		Pending:      pending,
		Peers:        peers,
		Accounts:     accounts,
	}

	return &db, nil
}

// DataDir returns the directory holding the snapshots.
func (db *Database) DataDir() string {
	return db.dataDir
}
