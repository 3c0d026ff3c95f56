package database

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account represents a local user account stored in the accounts collection.
// Accounts are identified by their address.
type Account struct {
	PubKey  string `json:"pubkey"`
	Address string `json:"address" validate:"required"`
	Name    string `json:"name,omitempty"`
}

// NewAccount constructs an account value from the public key.
func NewAccount(name string, pk ecdsa.PublicKey) Account {
	return Account{
		PubKey:  hexutil.Encode(crypto.FromECDSAPub(&pk)),
		Address: PublicKeyToAddress(pk),
		Name:    name,
	}
}

// Digest implements the storage.Record interface.
func (a Account) Digest() string {
	return a.Address
}

// =============================================================================

// PublicKeyToAddress converts the public key to an account address.
func PublicKeyToAddress(pk ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(pk).String()
}

// ToAddress validates the hex-encoded string is formatted as an
// account address.
func ToAddress(hex string) (string, error) {
	if !IsAddress(hex) {
		return "", errors.New("invalid account format")
	}

	return hex, nil
}

// IsAddress verifies whether the underlying data represents a valid
// hex-encoded account address.
func IsAddress(a string) bool {
	const addressLength = 20

	if has0xPrefix(a) {
		a = a[2:]
	}

	return len(a) == 2*addressLength && isHex(a)
}

// =============================================================================

// has0xPrefix validates the account starts with a 0x.
func has0xPrefix(a string) bool {
	return len(a) >= 2 && a[0] == '0' && (a[1] == 'x' || a[1] == 'X')
}

// isHex validates whether each byte is valid hexadecimal string.
func isHex(a string) bool {
	if len(a)%2 != 0 {
		return false
	}

	for _, c := range []byte(a) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

// isHexCharacter returns bool of c being a valid hexadecimal.
func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
