// Package coordinator implements the coordinator side of the protocol: it
// accepts worker connections, assigns work items, tracks per-worker
// liveness, reassigns on timeout, and drives ordered termination.
package coordinator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/willi-kappler/crunchgrid/config"
)

// sweepInterval is the fixed tick of the liveness sweep loop.
const sweepInterval = 10 * time.Second

// Option configures optional Coordinator behavior not required by every
// caller.
type Option[W, R any] func(*Coordinator[W, R])

// WithMetrics registers Prometheus collectors against reg and serves them,
// along with /healthz, on addr. Purely additive: the dispatch loop's
// behavior is identical with or without this option.
func WithMetrics[W, R any](addr string, reg *prometheus.Registry) Option[W, R] {
	return func(c *Coordinator[W, R]) {
		c.metrics = newMetrics()
		c.metrics.register(reg)
		c.metricsAddr = addr
		c.metricsReg = reg
	}
}

// Coordinator owns one job: it partitions the job across a dynamic pool of
// workers via Callbacks and the wire protocol in package codec.
type Coordinator[W, R any] struct {
	cfg       config.Config
	callbacks Callbacks[W, R]
	logger    zerolog.Logger
	key       [32]byte

	state *state

	metrics     *Metrics
	metricsAddr string
	metricsReg  *prometheus.Registry
}

// New constructs a Coordinator. The coordinator does not start listening
// until Run is called.
func New[W, R any](cfg config.Config, callbacks Callbacks[W, R], logger zerolog.Logger, opts ...Option[W, R]) *Coordinator[W, R] {
	c := &Coordinator[W, R]{
		cfg:       cfg,
		callbacks: callbacks,
		logger:    logger,
		key:       cfg.SecretKey,
		state:     newState(cfg.QuitCounter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Metrics returns the coordinator's Prometheus collectors, or nil if it was
// constructed without WithMetrics.
func (c *Coordinator[W, R]) Metrics() *Metrics {
	return c.metrics
}

// Run binds the listener, starts the sweep loop, and serves connections
// until the job is done and the quit grace period has elapsed, or ctx is
// cancelled. Once the listener is bound, it returns after calling
// Callbacks.SaveData exactly once; if binding fails, it returns that error
// without calling SaveData.
func (c *Coordinator[W, R]) Run(ctx context.Context) error {
	addr := fmt.Sprintf("0.0.0.0:%d", c.cfg.ServerPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("coordinator: failed to listen on %s: %w", addr, err)
	}
	c.logger.Info().Str("addr", addr).Msg("coordinator listening")

	if c.metricsAddr != "" {
		go func() {
			if err := ServeMetrics(c.metricsAddr, c.metricsReg); err != nil {
				c.logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweepDone := make(chan struct{})
	go c.sweepLoop(ctx, listener, sweepDone)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- c.acceptLoop(listener)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		_ = listener.Close()
		<-serveErr
	case err := <-serveErr:
		// Listener closed by the sweep loop (quit grace elapsed) or failed.
		runErr = err
	}

	cancel()
	<-sweepDone

	c.logger.Info().Msg("saving data")
	var saveErr error
	if c.callbacks.SaveData != nil {
		if err := c.callbacks.SaveData(); err != nil {
			uerr := &UserError{Callback: "SaveData", cause: err}
			if c.callbacks.OnCallbackError != nil {
				c.callbacks.OnCallbackError(uerr)
			} else {
				saveErr = uerr
			}
		}
	}

	if runErr == nil {
		c.state.mu.Lock()
		runErr = c.state.fatalErr
		c.state.mu.Unlock()
	}
	if runErr == nil {
		runErr = saveErr
	}

	c.logger.Info().Msg("coordinator exiting")

	return runErr
}

// acceptLoop accepts connections until the listener is closed, handling each
// on its own goroutine.
func (c *Coordinator[W, R]) acceptLoop(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			return err
		}
		go c.handleConn(conn)
	}
}

// sweepLoop ticks every sweepInterval, checking job completion and worker
// liveness. Once the job is done it enters a quit grace period, decrementing
// quitCounter each tick; when it reaches zero the listener is closed, which
// unblocks acceptLoop and lets Run proceed to shutdown.
func (c *Coordinator[W, R]) sweepLoop(ctx context.Context, listener net.Listener, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			stop := c.sweepOnce(start)
			if c.metrics != nil {
				c.metrics.SweepDuration.Observe(time.Since(start).Seconds())
			}
			if stop {
				_ = listener.Close()
				return
			}
		}
	}
}

// sweepOnce runs one tick of the sweep loop and reports whether the
// coordinator should now stop listening for new connections.
func (c *Coordinator[W, R]) sweepOnce(now time.Time) bool {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if c.state.quitting {
		c.state.quitCounter--
		c.logger.Debug().Int("quit_counter", c.state.quitCounter).Msg("quitting, counting down")
		return c.state.quitCounter <= 0
	}

	if c.callbacks.IsJobDone != nil && c.callbacks.IsJobDone() {
		c.logger.Info().Msg("job done, entering quit grace period")
		c.state.quitting = true
		return false
	}

	timeout := time.Duration(c.cfg.HeartbeatTimeout) * time.Second
	for id, rec := range c.state.workers {
		elapsed := now.Sub(rec.lastSeen) + time.Second
		if elapsed <= timeout {
			continue
		}
		c.logger.Warn().Str("worker", id.String()).Msg("worker timed out")
		if c.metrics != nil {
			c.metrics.Timeouts.Inc()
		}
		if c.callbacks.OnTimeout != nil {
			c.callbacks.OnTimeout(id)
		}
	}
	return false
}

func isClosedErr(err error) bool {
	return err != nil && (err == net.ErrClosed || isUseOfClosedConn(err))
}

func isUseOfClosedConn(err error) bool {
	// net.Listener.Accept wraps the underlying error; checking the message
	// keeps this independent of the exact wrapping used by each OS/runtime.
	const marker = "use of closed network connection"
	type causer interface{ Unwrap() error }
	for e := err; e != nil; {
		if e.Error() == marker {
			return true
		}
		u, ok := e.(causer)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}
