// Package accounts manages the local accounts of a node: key files on disk,
// the accounts collection, and name lookups for account addresses.
package accounts

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

// keyExtension is the file extension of a private key file.
const keyExtension = ".ecdsa"

// Set of error variables for account management.
var (
	ErrNoAccount         = errors.New("no account exists, create one first")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Accounts binds the key folder to the accounts collection.
type Accounts struct {
	folder string
	repo   *database.Repository[database.Account]
}

// New constructs the accounts manager. The key folder is created if it
// does not exist.
func New(folder string, repo *database.Repository[database.Account]) (*Accounts, error) {
	if err := os.MkdirAll(folder, 0700); err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}

	accts := Accounts{
		folder: folder,
		repo:   repo,
	}

	return &accts, nil
}

// Create generates a new key pair, saves the private key under the name and
// stores the account. An existing key file is never overwritten.
func (a *Accounts) Create(name string) (database.Account, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return database.Account{}, fmt.Errorf("invalid account name %q", name)
	}

	path := a.keyPath(name)
	if _, err := os.Stat(path); err == nil {
		return database.Account{}, fmt.Errorf("account %q already exists", name)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return database.Account{}, fmt.Errorf("generating key: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return database.Account{}, fmt.Errorf("saving key: %w", err)
	}

	account := database.NewAccount(name, privateKey.PublicKey)
	if err := a.repo.Submit(account); err != nil {
		return database.Account{}, err
	}

	return account, nil
}

// List returns the stored accounts in creation order.
func (a *Accounts) List() []database.Account {
	return a.repo.Records()
}

// Current returns the most recently created account.
func (a *Accounts) Current() (database.Account, error) {
	accounts := a.repo.Records()
	if len(accounts) == 0 {
		return database.Account{}, ErrNoAccount
	}

	return accounts[len(accounts)-1], nil
}

// Find returns the stored account with the specified name.
func (a *Accounts) Find(name string) (database.Account, error) {
	for _, account := range a.repo.Records() {
		if account.Name == name {
			return account, nil
		}
	}

	return database.Account{}, fmt.Errorf("account %q: %w", name, ErrNoAccount)
}

// PrivateKey loads the private key saved under the name.
func (a *Accounts) PrivateKey(name string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(a.keyPath(name))
	if err != nil {
		return nil, fmt.Errorf("loading key %q: %w", name, err)
	}

	return privateKey, nil
}

// Names walks the key folder and returns the name of every key file by
// account address.
func (a *Accounts) Names() (map[string]string, error) {
	names := make(map[string]string)

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != keyExtension {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		address := database.PublicKeyToAddress(privateKey.PublicKey)
		names[address] = strings.TrimSuffix(filepath.Base(fileName), keyExtension)

		return nil
	}

	if err := filepath.WalkDir(a.folder, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return names, nil
}

// Lookup returns the name for the specified address, or the address
// itself if no local key matches.
func (a *Accounts) Lookup(address string) string {
	if account, exists := a.repo.FindByHash(address); exists && account.Name != "" {
		return account.Name
	}
	return address
}

// keyPath returns the location of the key file for the name.
func (a *Accounts) keyPath(name string) string {
	return filepath.Join(a.folder, strings.TrimSuffix(name, keyExtension)+keyExtension)
}

// =============================================================================

// Balance returns the value received by the address minus the value it sent
// across the specified transactions.
func Balance(address string, txs []database.Transaction) int64 {
	var balance int64

	for _, tx := range txs {
		for _, in := range tx.Inputs {
			if strings.EqualFold(in.SenderAddress, address) {
				balance -= int64(in.Amount)
			}
		}
		for _, out := range tx.Outputs {
			if strings.EqualFold(out.ReceiverAddress, address) {
				balance += int64(out.Amount)
			}
		}
	}

	return balance
}

// Transfer builds a transaction moving the amount from the sender to the
// receiver. The sender must hold the amount across the confirmed
// transactions. The input references the latest confirmed transaction that
// paid the sender.
func Transfer(sender string, receiver string, amount uint32, confirmed []database.Transaction, now time.Time) (database.Transaction, error) {
	if !database.IsAddress(receiver) {
		return database.Transaction{}, fmt.Errorf("invalid receiver %q", receiver)
	}

	if amount == 0 {
		return database.Transaction{}, errors.New("amount must be greater than zero")
	}

	if balance := Balance(sender, confirmed); balance < int64(amount) {
		return database.Transaction{}, fmt.Errorf("balance %d, amount %d: %w", balance, amount, ErrInsufficientFunds)
	}

	var source string
	var latest uint64
	for _, tx := range confirmed {
		for _, out := range tx.Outputs {
			if strings.EqualFold(out.ReceiverAddress, sender) && tx.Timestamp >= latest {
				source = tx.Hash
				latest = tx.Timestamp
			}
		}
	}

	ts := uint64(now.Unix())

	in := database.Input{
		SenderAddress: sender,
		Amount:        amount,
		SourceHash:    source,
	}

	return database.NewTransaction(ts, []database.Input{in}, []database.Output{database.NewOutput(receiver, amount, ts)}), nil
}
