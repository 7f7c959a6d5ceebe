package worker

// Callbacks is the capability record user code supplies to parameterize a
// Worker's job semantics.
type Callbacks[W, R any] struct {
	// OnInit receives the coordinator's init payload once, right after
	// registration succeeds. Optional.
	OnInit func(initData any) error

	// ProcessData computes a result for one work item. It runs on its own
	// goroutine so it never blocks the heartbeat task.
	ProcessData func(item W) (R, error)
}
