package coordinator

import "github.com/willi-kappler/crunchgrid/nodeid"

// Callbacks is the capability record user code supplies to parameterize a
// Coordinator's job semantics. The dispatcher owns all distribution,
// transport, and sequencing; these functions own only the job-specific
// decisions.
//
// GetInitData, GetNewData, ProcessResult, and OnTimeout are invoked with the
// coordinator's state mutex held, so they may freely read and write shared
// job state without any locking of their own — but they must not block on
// anything other than that state.
type Callbacks[W, R any] struct {
	// GetInitData returns the payload a newly registered worker receives in
	// its InitOK reply.
	GetInitData func(id nodeid.ID) (any, error)

	// GetNewData returns the next work unit for id, or a nil *W when all
	// units are currently assigned but the job is not yet complete (the
	// "no-work-yet" sentinel).
	GetNewData func(id nodeid.ID) (*W, error)

	// ProcessResult merges a completed result into job state. It must be
	// idempotent: a worker that timed out and was reassigned may still
	// deliver its result late.
	ProcessResult func(id nodeid.ID, result R) error

	// IsJobDone reports whether every unit has been processed. It is polled
	// every sweep tick and must be cheap.
	IsJobDone func() bool

	// OnTimeout is called when a worker has missed heartbeats for longer
	// than the configured timeout. It is expected to release that worker's
	// in-flight unit and remove the worker from any user-maintained
	// registry; the coordinator itself never deletes the worker record.
	OnTimeout func(id nodeid.ID)

	// SaveData is called exactly once, after the listener has fully closed.
	SaveData func() error

	// OnCallbackError, if set, receives the UserError whenever GetInitData,
	// GetNewData, ProcessResult, or SaveData returns an error, and Run does
	// not return that error. If unset, the first such error is wrapped in a
	// UserError and returned from Run after the coordinator has shut down;
	// the coordinator keeps serving until then.
	OnCallbackError func(error)
}
