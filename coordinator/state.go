package coordinator

import (
	"sync"
	"time"

	"github.com/willi-kappler/crunchgrid/nodeid"
)

// workerRecord is the coordinator-side bookkeeping for one registered
// worker.
type workerRecord struct {
	id       nodeid.ID
	lastSeen time.Time
}

// state is the coordinator's entire mutable world, guarded by mu. Every read
// or write of workers, quitting, or quitCounter happens with mu held; user
// callbacks are invoked with mu held too, so job state the callbacks close
// over is implicitly protected by the same lock.
type state struct {
	mu          sync.Mutex
	workers     map[nodeid.ID]*workerRecord
	quitting    bool
	quitCounter int

	// fatalErr holds the first unhandled callback error, when Callbacks has
	// no OnCallbackError set. Run returns it after shutdown completes.
	fatalErr error
}

func newState(quitCounter int) *state {
	return &state{
		workers:     make(map[nodeid.ID]*workerRecord),
		quitCounter: quitCounter,
	}
}

// register inserts a new worker record. Callers must hold mu and must have
// already checked the id isn't present: an Init for an already-registered id
// is rejected, not merged.
func (s *state) register(id nodeid.ID, now time.Time) {
	s.workers[id] = &workerRecord{id: id, lastSeen: now}
}

// touch updates a known worker's last-seen timestamp. Callers must hold mu.
func (s *state) touch(id nodeid.ID, now time.Time) {
	if rec, ok := s.workers[id]; ok {
		rec.lastSeen = now
	}
}

// knows reports whether id is currently registered. Callers must hold mu.
func (s *state) knows(id nodeid.ID) bool {
	_, ok := s.workers[id]
	return ok
}
