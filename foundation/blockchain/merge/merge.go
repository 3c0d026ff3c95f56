// Package merge provides the policies used to reconcile local state with
// the state pulled from a peer. No chain selection is performed, a policy
// only decides which remote records are inserted locally.
package merge

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage"
)

// List of merge strategies.
const (
	AcceptMissing = "accept-missing"
	Ignore        = "ignore"
)

// Func defines a function that takes the local and remote records of one
// collection and returns the remote records to insert locally.
type Func[T storage.Record] func(local []T, remote []T) []T

// Strategy is the set of merge functions applied during a sync.
type Strategy struct {
	Name         string
	Blocks       Func[database.Block]
	Transactions Func[database.Transaction]
}

// Map of the different merge strategies.
var strategies = map[string]Strategy{
	AcceptMissing: {
		Name:         AcceptMissing,
		Blocks:       missingBlocks,
		Transactions: Missing[database.Transaction],
	},
	Ignore: {
		Name:         Ignore,
		Blocks:       None[database.Block],
		Transactions: None[database.Transaction],
	},
}

// Retrieve returns the specified merge strategy.
func Retrieve(name string) (Strategy, error) {
	strategy, exists := strategies[name]
	if !exists {
		return Strategy{}, fmt.Errorf("merge strategy %q does not exist", name)
	}
	return strategy, nil
}

// =============================================================================

// Missing returns the remote records whose hash is not present locally, in
// remote order. A hash repeated in the remote set is returned once.
func Missing[T storage.Record](local []T, remote []T) []T {
	seen := make(map[string]bool, len(local)+len(remote))
	for _, record := range local {
		seen[record.Digest()] = true
	}

	var missing []T
	for _, record := range remote {
		hash := record.Digest()
		if seen[hash] {
			continue
		}
		seen[hash] = true
		missing = append(missing, record)
	}

	return missing
}

// None never accepts any remote record.
func None[T storage.Record](local []T, remote []T) []T {
	return nil
}

// missingBlocks accepts the missing blocks in ascending index order so the
// local collection grows the same way the remote one did.
func missingBlocks(local []database.Block, remote []database.Block) []database.Block {
	missing := Missing(local, remote)

	slices.SortStableFunc(missing, func(a, b database.Block) int {
		return cmp.Compare(a.Index, b.Index)
	})

	return missing
}
