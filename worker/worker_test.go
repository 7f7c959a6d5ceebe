package worker_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willi-kappler/crunchgrid/config"
	"github.com/willi-kappler/crunchgrid/coordinator"
	"github.com/willi-kappler/crunchgrid/nodeid"
	"github.com/willi-kappler/crunchgrid/worker"
)

func testConfig(t *testing.T, port int) config.Config {
	t.Helper()
	return config.Config{
		ServerAddress:    "127.0.0.1",
		ServerPort:       port,
		HeartbeatTimeout: 10,
		QuitCounter:      1,
		SecretKey:        [32]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32},
	}
}

func silentLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// TestEndToEndJobCompletes drives a single worker against a real coordinator
// over TCP loopback through a tiny job: sum N integers, one per work item.
func TestEndToEndJobCompletes(t *testing.T) {
	const n = 5
	cfg := testConfig(t, 31900)

	var mu sync.Mutex
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i + 1
	}
	var total int64
	var processed int

	callbacks := coordinator.Callbacks[int, int]{
		GetInitData: func(id nodeid.ID) (any, error) {
			return "welcome", nil
		},
		GetNewData: func(id nodeid.ID) (*int, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(remaining) == 0 {
				return nil, nil
			}
			item := remaining[len(remaining)-1]
			remaining = remaining[:len(remaining)-1]
			return &item, nil
		},
		ProcessResult: func(id nodeid.ID, result int) error {
			mu.Lock()
			defer mu.Unlock()
			atomic.AddInt64(&total, int64(result))
			processed++
			return nil
		},
		IsJobDone: func() bool {
			mu.Lock()
			defer mu.Unlock()
			return processed == n
		},
	}

	coord := coordinator.New(cfg, callbacks, silentLogger())

	// The sweep loop ticks every 10 seconds: one tick to notice the job is
	// done, one more to drain quitCounter (1) to zero.
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	coordErr := make(chan error, 1)
	go func() { coordErr <- coord.Run(ctx) }()

	// give the listener a moment to bind before the worker dials
	time.Sleep(50 * time.Millisecond)

	w := worker.New(cfg, worker.Callbacks[int, int]{
		ProcessData: func(item int) (int, error) {
			return item * item, nil
		},
	}, silentLogger())

	workerErr := make(chan error, 1)
	go func() { workerErr <- w.Run(ctx) }()

	select {
	case err := <-coordErr:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("coordinator did not finish before deadline")
	}

	cancel()
	<-workerErr

	expected := int64(0)
	for i := 1; i <= n; i++ {
		expected += int64(i * i)
	}
	assert.Equal(t, expected, atomic.LoadInt64(&total))
	assert.Equal(t, n, processed)
}

// TestWorkerTerminatesOnInitError confirms the worker stops cleanly (no
// error, no hang) when the coordinator rejects registration.
func TestWorkerTerminatesOnInitError(t *testing.T) {
	cfg := testConfig(t, 31901)

	callbacks := coordinator.Callbacks[int, int]{
		GetInitData:   func(id nodeid.ID) (any, error) { return nil, assert.AnError },
		GetNewData:    func(id nodeid.ID) (*int, error) { return nil, nil },
		ProcessResult: func(id nodeid.ID, result int) error { return nil },
		IsJobDone:     func() bool { return false },
	}

	coord := coordinator.New(cfg, callbacks, silentLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go coord.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	w := worker.New(cfg, worker.Callbacks[int, int]{
		ProcessData: func(item int) (int, error) { return item, nil },
	}, silentLogger())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate after init was rejected")
	}
}
