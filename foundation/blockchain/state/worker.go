package state

import (
	"context"
	"sync"
	"time"
)

// peerUpdateInterval represents the default interval of finding new peer
// nodes and pulling any records this node is missing.
const peerUpdateInterval = time.Minute

// =============================================================================

// worker manages the background peer workflows for the node.
type worker struct {
	state       *State
	wg          sync.WaitGroup
	once        sync.Once
	ticker      *time.Ticker
	shut        chan struct{}
	peerUpdates chan bool
	ctx         context.Context
	cancel      context.CancelFunc
	evHandler   EventHandler
}

// runWorker creates a worker, registers it with the state and starts the
// background goroutines.
func runWorker(state *State) {
	interval := state.interval
	if interval <= 0 {
		interval = peerUpdateInterval
	}

	// In flight peer calls are abandoned when the worker shuts down.
	ctx, cancel := context.WithCancel(context.Background())

	w := worker{
		state:       state,
		ticker:      time.NewTicker(interval),
		shut:        make(chan struct{}),
		peerUpdates: make(chan bool, 1),
		ctx:         ctx,
		cancel:      cancel,
		evHandler:   state.evHandler,
	}

	state.mu.Lock()
	state.worker = &w
	state.mu.Unlock()

	// Load the set of operations we need to run.
	operations := []func(){
		w.peerOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}
}

// shutdown terminates the goroutines performing work. Calling shutdown
// more than once is a no-op.
func (w *worker) shutdown() {
	w.once.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.cancel()
		w.wg.Wait()
	})
}

// =============================================================================

// peerOperations handles finding new peers and pulling missing records.
func (w *worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.peerUpdates:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation updates the peer list and pulls missing records.
func (w *worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	w.state.syncPeers(w.ctx)
	w.state.announceSelf(w.ctx)
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// signalPeerUpdates queues up a peer update. If there is already a signal
// pending in the channel, just return since an update will run.
func (w *worker) signalPeerUpdates() {
	select {
	case w.peerUpdates <- true:
		w.evHandler("worker: signalPeerUpdates: peer update signaled")
	default:
	}
}

// =============================================================================

// signalPeerUpdates asks the worker, if running, to refresh the peers.
func (s *State) signalPeerUpdates() {
	s.mu.RLock()
	w := s.worker
	s.mu.RUnlock()

	if w != nil {
		w.signalPeerUpdates()
	}
}
