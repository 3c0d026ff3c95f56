// Package broadcast applies a client side operation to every known peer.
// Each peer's outcome is independent of the others and a failure is
// reported, never raised, since the local insert that triggered the
// broadcast is the durable source of truth.
package broadcast

import (
	"context"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/rpc"
	"golang.org/x/sync/errgroup"
)

// EventHandler defines a function that is called when events
// occur in the processing of a broadcast.
type EventHandler func(v string, args ...any)

// Dialer constructs a client bound to one peer address.
type Dialer func(address string, timeout time.Duration) (*rpc.Client, error)

// Config represents the configuration required to construct a coordinator.
type Config struct {
	Roster        func() []string
	Dial          Dialer
	Timeout       time.Duration
	MaxConcurrent int
	EvHandler     EventHandler
}

// Coordinator fans operations out to the current peer roster.
type Coordinator struct {
	roster        func() []string
	dial          Dialer
	timeout       time.Duration
	maxConcurrent int
	evHandler     EventHandler
}

// New constructs a coordinator. The roster is consulted on every run so
// peers learned in between broadcasts are included.
func New(cfg Config) *Coordinator {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	roster := cfg.Roster
	if roster == nil {
		roster = func() []string { return nil }
	}

	dial := cfg.Dial
	if dial == nil {
		dial = rpc.NewClient
	}

	return &Coordinator{
		roster:        roster,
		dial:          dial,
		timeout:       cfg.Timeout,
		maxConcurrent: cfg.MaxConcurrent,
		evHandler:     ev,
	}
}

// =============================================================================

// Outcome is the result of applying an operation to one peer.
type Outcome[R any] struct {
	Peer  string
	Value R
	Err   error
}

// Report is the set of per peer outcomes of one broadcast, in roster order.
type Report[R any] []Outcome[R]

// Failures returns the outcomes that carry an error.
func (r Report[R]) Failures() []Outcome[R] {
	var out []Outcome[R]
	for _, o := range r {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Successes returns the outcomes that completed without error.
func (r Report[R]) Successes() []Outcome[R] {
	var out []Outcome[R]
	for _, o := range r {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// =============================================================================

// Run applies the operation to every peer in the roster concurrently. A
// slow or unreachable peer holds up only its own slot, each call runs
// under its own timeout. Run always waits for every dispatched call and
// never returns an error, failures are carried in the report.
func Run[R any](ctx context.Context, c *Coordinator, name string, op func(ctx context.Context, cln *rpc.Client) (R, error)) Report[R] {
	roster := c.roster()

	c.evHandler("broadcast: %s: started: peers[%d]", name, len(roster))

	report := make(Report[R], len(roster))

	var g errgroup.Group
	if c.maxConcurrent > 0 {
		g.SetLimit(c.maxConcurrent)
	}

	for i, address := range roster {
		g.Go(func() error {
			report[i] = dispatch(ctx, c, name, address, op)
			return nil
		})
	}
	g.Wait()

	c.evHandler("broadcast: %s: completed: successes[%d] failures[%d]", name, len(report.Successes()), len(report.Failures()))

	return report
}

// dispatch applies the operation to a single peer.
func dispatch[R any](ctx context.Context, c *Coordinator, name string, address string, op func(ctx context.Context, cln *rpc.Client) (R, error)) Outcome[R] {
	out := Outcome[R]{Peer: address}

	if err := ctx.Err(); err != nil {
		out.Err = err
		c.evHandler("broadcast: %s: peer[%s]: abandoned: %s", name, address, err)
		return out
	}

	cln, err := c.dial(address, c.timeout)
	if err != nil {
		out.Err = err
		c.evHandler("broadcast: %s: peer[%s]: ERROR: %s", name, address, err)
		return out
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out.Value, out.Err = op(ctx, cln)
	if out.Err != nil {
		c.evHandler("broadcast: %s: peer[%s]: ERROR: %s", name, address, out.Err)
		return out
	}

	c.evHandler("broadcast: %s: peer[%s]: sent", name, address)

	return out
}

// =============================================================================

// Ping checks every peer is alive.
func Ping(ctx context.Context, c *Coordinator) Report[bool] {
	return Run(ctx, c, rpc.ProcPing, func(ctx context.Context, cln *rpc.Client) (bool, error) {
		return cln.Ping(ctx)
	})
}

// NewBlock sends the block to every peer.
func NewBlock(ctx context.Context, c *Coordinator, block database.Block) Report[bool] {
	return Run(ctx, c, rpc.ProcNewBlock, acknowledge(func(ctx context.Context, cln *rpc.Client) error {
		return cln.NewBlock(ctx, block)
	}))
}

// NewUntransaction sends the pending transaction to every peer.
func NewUntransaction(ctx context.Context, c *Coordinator, tx database.Transaction) Report[bool] {
	return Run(ctx, c, rpc.ProcNewUntransaction, acknowledge(func(ctx context.Context, cln *rpc.Client) error {
		return cln.NewUntransaction(ctx, tx)
	}))
}

// BlockTransaction sends the confirmed transaction to every peer.
func BlockTransaction(ctx context.Context, c *Coordinator, tx database.Transaction) Report[bool] {
	return Run(ctx, c, rpc.ProcBlockTransaction, acknowledge(func(ctx context.Context, cln *rpc.Client) error {
		return cln.BlockTransaction(ctx, tx)
	}))
}

// AddNode announces the peer address to every peer.
func AddNode(ctx context.Context, c *Coordinator, address string) Report[bool] {
	return Run(ctx, c, rpc.ProcAddNode, acknowledge(func(ctx context.Context, cln *rpc.Client) error {
		return cln.AddNode(ctx, address)
	}))
}

// acknowledge adapts a command call to an operation reporting true on success.
func acknowledge(fn func(ctx context.Context, cln *rpc.Client) error) func(ctx context.Context, cln *rpc.Client) (bool, error) {
	return func(ctx context.Context, cln *rpc.Client) (bool, error) {
		if err := fn(ctx, cln); err != nil {
			return false, err
		}
		return true, nil
	}
}
