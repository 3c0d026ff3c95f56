// Package state is the core API for the ledger node. It owns the node
// lifecycle, applies local and peer originated inserts through the same
// deduplicated path, and propagates local inserts to the known peers.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/broadcast"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/merge"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
)

// EventHandler defines a function that is called when events
// occur in the processing of the node.
type EventHandler func(v string, args ...any)

// Phase represents where the node is in its lifecycle.
type Phase int

// Set of lifecycle phases in the order a node moves through them.
const (
	Uninitialized Phase = iota
	Initializing
	Syncing
	Serving
	ShuttingDown
	Terminated
)

var phaseNames = map[Phase]string{
	Uninitialized: "uninitialized",
	Initializing:  "initializing",
	Syncing:       "syncing",
	Serving:       "serving",
	ShuttingDown:  "shutting-down",
	Terminated:    "terminated",
}

// String implements the fmt.Stringer interface.
func (p Phase) String() string {
	if name, exists := phaseNames[p]; exists {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	Host               string
	Database           *database.Database
	Scheme             string
	KnownPeers         []string
	MergeStrategy      string
	CallTimeout        time.Duration
	MaxConcurrent      int
	PeerUpdateInterval time.Duration
	EvHandler          EventHandler
}

// State manages the ledger collections and the peers of this node.
type State struct {
	host        string
	evHandler   EventHandler
	callTimeout time.Duration
	interval    time.Duration

	db          *database.Database
	registry    *peer.Registry
	coordinator *broadcast.Coordinator
	strategy    merge.Strategy

	mu     sync.RWMutex
	phase  Phase
	worker *worker
}

// New constructs the node state over an already opened database. The seed
// peers are added to the registry so they survive a restart.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}

	// The merge policy is resolved at startup so a bad name never reaches
	// the first sync.
	name := cfg.MergeStrategy
	if name == "" {
		name = merge.AcceptMissing
	}
	strategy, err := merge.Retrieve(name)
	if err != nil {
		return nil, err
	}

	registry := peer.NewRegistry(cfg.Database.Peers, cfg.Scheme, cfg.Host)
	for _, address := range cfg.KnownPeers {
		if registry.IsSelf(address) {
			continue
		}
		if _, err := registry.Add(address); err != nil {
			return nil, fmt.Errorf("adding known peer: %w", err)
		}
	}

	coordinator := broadcast.New(broadcast.Config{
		Roster:        registry.Copy,
		Timeout:       cfg.CallTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
		EvHandler:     broadcast.EventHandler(ev),
	})

	state := State{
		host:        cfg.Host,
		evHandler:   ev,
		callTimeout: cfg.CallTimeout,
		interval:    cfg.PeerUpdateInterval,

		db:          cfg.Database,
		registry:    registry,
		coordinator: coordinator,
		strategy:    strategy,

		phase: Initializing,
	}

	ev("state: New: initialized: host[%s] peers[%d] blocks[%d] strategy[%s]", cfg.Host, len(registry.List()), cfg.Database.Blocks.Count(), strategy.Name)

	return &state, nil
}

// Start brings the node up to date with its peers and starts the
// background peer refresh. The node is serving once Start returns.
func (s *State) Start(ctx context.Context) {
	s.Sync(ctx)
	runWorker(s)
}

// Shutdown cleanly brings the node down. In flight broadcasts are
// abandoned, local state is never touched by a broadcast response.
func (s *State) Shutdown() error {
	s.setPhase(ShuttingDown)

	s.mu.RLock()
	w := s.worker
	s.mu.RUnlock()

	// Stop all peer activity.
	if w != nil {
		w.shutdown()
	}

	s.setPhase(Terminated)

	return nil
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.phase
}

// setPhase moves the node to the specified phase.
func (s *State) setPhase(phase Phase) {
	s.mu.Lock()
	from := s.phase
	s.phase = phase
	s.mu.Unlock()

	s.evHandler("state: phase: %s -> %s", from, phase)
}
