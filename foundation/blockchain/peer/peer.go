// Package peer maintains the peer related information such as the set
// of known peers and how their addresses are normalized.
package peer

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// DefaultScheme is the transport scheme applied to addresses that
// don't carry one.
const DefaultScheme = "tcp://"

// schemes is the set of recognized transport scheme prefixes.
var schemes = []string{"tcp://", "http://"}

// Normalize prefixes the address with the scheme if it doesn't already
// carry a recognized one. Normalizing a normalized address is a no-op.
func Normalize(address string, scheme string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	if HasScheme(address) {
		return address
	}

	if scheme == "" {
		scheme = DefaultScheme
	}

	return scheme + address
}

// HasScheme reports whether the address starts with a recognized scheme.
func HasScheme(address string) bool {
	for _, scheme := range schemes {
		if strings.HasPrefix(address, scheme) {
			return true
		}
	}
	return false
}

// HostPort returns the address without its scheme prefix.
func HostPort(address string) string {
	address = strings.TrimSpace(address)
	for _, scheme := range schemes {
		if strings.HasPrefix(address, scheme) {
			return strings.TrimPrefix(address, scheme)
		}
	}
	return address
}

// =============================================================================

// Registry represents the set of known peers backed by the peers
// collection. Equality is the normalized address string.
type Registry struct {
	scheme string
	host   string
	peers  *database.Repository[database.PeerAddress]
}

// NewRegistry constructs a registry. The host is this node's own address
// and is never handed out as a peer for fan-out operations.
func NewRegistry(peers *database.Repository[database.PeerAddress], scheme string, host string) *Registry {
	if scheme == "" {
		scheme = DefaultScheme
	}

	return &Registry{
		scheme: scheme,
		host:   host,
		peers:  peers,
	}
}

// Scheme returns the default scheme applied by this registry.
func (r *Registry) Scheme() string {
	return r.scheme
}

// Normalize applies the registry's default scheme to the address.
func (r *Registry) Normalize(address string) string {
	return Normalize(address, r.scheme)
}

// Add normalizes the address and stores it. Adding a known peer is
// silently ignored. The normalized address is returned.
func (r *Registry) Add(address string) (string, error) {
	normalized := r.Normalize(address)
	if normalized == "" {
		return "", fmt.Errorf("peer address %q is empty", address)
	}

	if err := r.peers.Submit(database.PeerAddress(normalized)); err != nil {
		return "", err
	}

	return normalized, nil
}

// Contains reports whether the address is a known peer.
func (r *Registry) Contains(address string) bool {
	return r.peers.Contains(r.Normalize(address))
}

// List returns all known peer addresses in insertion order.
func (r *Registry) List() []string {
	records := r.peers.Records()

	peers := make([]string, len(records))
	for i, record := range records {
		peers[i] = string(record)
	}

	return peers
}

// Copy returns the roster used for fan-out: every known peer except the
// one matching this node's own host.
func (r *Registry) Copy() []string {
	var peers []string
	for _, address := range r.List() {
		if r.IsSelf(address) {
			continue
		}
		peers = append(peers, address)
	}

	return peers
}

// IsSelf validates if the specified address points at this node.
func (r *Registry) IsSelf(address string) bool {
	if r.host == "" {
		return false
	}
	return HostPort(address) == HostPort(r.host)
}
