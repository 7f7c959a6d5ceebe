package worker

import "fmt"

// TransportError reports a dial, write, close-write, or read failure during
// a request/reply exchange. There is no transport-level retry: any
// TransportError is fatal to the worker, and the coordinator's sweep is
// responsible for reassigning the lost work.
type TransportError struct {
	Op    string
	cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("worker: %s failed: %v", e.Op, e.cause)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}
