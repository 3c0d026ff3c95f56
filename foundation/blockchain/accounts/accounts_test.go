package accounts_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newAccounts(t *testing.T) *accounts.Accounts {
	dir := t.TempDir()

	repo, err := database.NewRepository[database.Account](database.RoleAccounts, filepath.Join(dir, "data", "accounts.json"), nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the accounts repository: %v", failed, err)
	}

	accts, err := accounts.New(filepath.Join(dir, "keys"), repo)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the accounts: %v", failed, err)
	}

	return accts
}

func Test_Create(t *testing.T) {
	t.Log("Given the need to manage local accounts.")
	{
		accts := newAccounts(t)

		if _, err := accts.Current(); !errors.Is(err, accounts.ErrNoAccount) {
			t.Fatalf("\t%s\tShould report no current account: %v", failed, err)
		}
		t.Logf("\t%s\tShould report no current account.", success)

		kennedy, err := accts.Create("kennedy")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create an account: %v", failed, err)
		}
		if !database.IsAddress(kennedy.Address) {
			t.Fatalf("\t%s\tShould derive a valid address: %q", failed, kennedy.Address)
		}
		t.Logf("\t%s\tShould be able to create an account.", success)

		pavel, err := accts.Create("pavel")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to create a second account: %v", failed, err)
		}

		if _, err := accts.Create("kennedy"); err == nil {
			t.Fatalf("\t%s\tShould not overwrite an existing account.", failed)
		}
		t.Logf("\t%s\tShould not overwrite an existing account.", success)

		current, err := accts.Current()
		if err != nil || current.Address != pavel.Address {
			t.Fatalf("\t%s\tShould report the latest account as current: %v %v", failed, current, err)
		}
		t.Logf("\t%s\tShould report the latest account as current.", success)

		pk, err := accts.PrivateKey("kennedy")
		if err != nil || database.PublicKeyToAddress(pk.PublicKey) != kennedy.Address {
			t.Fatalf("\t%s\tShould load the saved private key: %v", failed, err)
		}
		t.Logf("\t%s\tShould load the saved private key.", success)

		names, err := accts.Names()
		if err != nil || names[kennedy.Address] != "kennedy" || names[pavel.Address] != "pavel" {
			t.Fatalf("\t%s\tShould resolve names from the key folder: %v %v", failed, names, err)
		}
		if accts.Lookup(pavel.Address) != "pavel" {
			t.Fatalf("\t%s\tShould look up the account name.", failed)
		}
		t.Logf("\t%s\tShould resolve account names.", success)
	}
}

func Test_Balance(t *testing.T) {
	t.Log("Given the need to compute an account balance.")
	{
		const a = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
		const b = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"

		txs := []database.Transaction{
			database.NewTransaction(1, nil, []database.Output{database.NewOutput(a, 100, 1)}),
			database.NewTransaction(2, []database.Input{{SenderAddress: a, Amount: 30}}, []database.Output{database.NewOutput(b, 30, 2)}),
		}

		if got := accounts.Balance(a, txs); got != 70 {
			t.Fatalf("\t%s\tShould compute the sender balance: got %d", failed, got)
		}
		if got := accounts.Balance(b, txs); got != 30 {
			t.Fatalf("\t%s\tShould compute the receiver balance: got %d", failed, got)
		}
		t.Logf("\t%s\tShould compute balances.", success)
	}
}

func Test_Transfer(t *testing.T) {
	t.Log("Given the need to build a transfer between accounts.")
	{
		const a = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"
		const b = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"

		funding := database.NewTransaction(1, nil, []database.Output{database.NewOutput(a, 100, 1)})
		confirmed := []database.Transaction{funding}
		now := time.Unix(1700000000, 0)

		tx, err := accounts.Transfer(a, b, 40, confirmed, now)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the transfer: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to build the transfer.", success)

		if tx.Hash != database.HashTransaction(tx) {
			t.Fatalf("\t%s\tShould stamp the transfer with its hash.", failed)
		}
		t.Logf("\t%s\tShould stamp the transfer with its hash.", success)

		if len(tx.Inputs) != 1 || tx.Inputs[0].SourceHash != funding.Hash {
			t.Fatalf("\t%s\tShould reference the funding transaction: %+v", failed, tx.Inputs)
		}
		t.Logf("\t%s\tShould reference the funding transaction.", success)

		confirmed = append(confirmed, tx)
		if got := accounts.Balance(b, confirmed); got != 40 {
			t.Fatalf("\t%s\tShould credit the receiver: got %d", failed, got)
		}
		t.Logf("\t%s\tShould credit the receiver.", success)

		if _, err := accounts.Transfer(a, b, 61, confirmed, now); !errors.Is(err, accounts.ErrInsufficientFunds) {
			t.Fatalf("\t%s\tShould reject spending more than the balance: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject spending more than the balance.", success)

		if _, err := accounts.Transfer(a, "bob", 1, confirmed, now); err == nil {
			t.Fatalf("\t%s\tShould reject an invalid receiver.", failed)
		}
		t.Logf("\t%s\tShould reject an invalid receiver.", success)
	}
}
