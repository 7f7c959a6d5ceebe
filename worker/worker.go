// Package worker implements the worker runtime: a main task that fetches
// and processes work items, and an independent heartbeat task, grouped so
// that either one terminating stops the other.
package worker

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/willi-kappler/crunchgrid/codec"
	"github.com/willi-kappler/crunchgrid/config"
	"github.com/willi-kappler/crunchgrid/nodeid"
)

// State is the main task's state machine position. The heartbeat task runs
// concurrently and never observes or mutates it.
type State int

const (
	StateInit State = iota
	StateNeedData
	StateHasResult
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateNeedData:
		return "NeedData"
	case StateHasResult:
		return "HasResult"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// noWorkSleep is how long the main task waits before re-asking for data
// after receiving the "no-work-yet" sentinel.
const noWorkSleep = 10 * time.Second

// Worker runs one node's half of the protocol: it registers with a
// Coordinator, then alternates fetching and computing work items while a
// second goroutine keeps it alive with periodic heartbeats.
type Worker[W, R any] struct {
	cfg       config.Config
	callbacks Callbacks[W, R]
	logger    zerolog.Logger
	id        nodeid.ID
	key       [32]byte
}

// New constructs a Worker with a freshly generated node identity.
func New[W, R any](cfg config.Config, callbacks Callbacks[W, R], logger zerolog.Logger) *Worker[W, R] {
	id := nodeid.New()
	return &Worker[W, R]{
		cfg:       cfg,
		callbacks: callbacks,
		logger:    logger.With().Str("worker", id.String()).Logger(),
		id:        id,
		key:       cfg.SecretKey,
	}
}

// ID returns this worker's node identity.
func (w *Worker[W, R]) ID() nodeid.ID {
	return w.id
}

// Run blocks until the main task or the heartbeat task terminates, which
// cancels the other, or until ctx is cancelled.
func (w *Worker[W, R]) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.mainTask(gctx)
		cancel()
		return err
	})
	g.Go(func() error {
		err := w.heartbeatTask(gctx)
		cancel()
		return err
	})
	return g.Wait()
}

func (w *Worker[W, R]) mainTask(ctx context.Context) error {
	state := StateInit
	var pending R

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		switch state {
		case StateInit:
			reply, err := w.exchange(ctx, codec.Init[W, R](w.id))
			if err != nil {
				return err
			}
			if reply.Tag != codec.TagInitOK {
				w.logger.Info().Str("reply", reply.Tag.String()).Msg("registration rejected")
				return nil
			}
			if w.callbacks.OnInit != nil {
				if err := w.callbacks.OnInit(reply.InitData); err != nil {
					return fmt.Errorf("worker: OnInit failed: %w", err)
				}
			}
			state = StateNeedData

		case StateNeedData:
			reply, err := w.exchange(ctx, codec.NeedData[W, R](w.id))
			if err != nil {
				return err
			}
			if reply.Tag != codec.TagNewData {
				w.logger.Info().Str("reply", reply.Tag.String()).Msg("need-data rejected")
				return nil
			}
			if reply.Item == nil {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(noWorkSleep):
				}
				continue
			}
			result, err := w.compute(ctx, *reply.Item)
			if err != nil {
				return fmt.Errorf("worker: ProcessData failed: %w", err)
			}
			pending = result
			state = StateHasResult

		case StateHasResult:
			reply, err := w.exchange(ctx, codec.Result[W, R](w.id, pending))
			if err != nil {
				return err
			}
			if reply.Tag != codec.TagResultOK {
				w.logger.Info().Str("reply", reply.Tag.String()).Msg("result rejected")
				return nil
			}
			state = StateNeedData
		}
	}
}

func (w *Worker[W, R]) heartbeatTask(ctx context.Context) error {
	timeout := time.Duration(w.cfg.HeartbeatTimeout) * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(timeout):
		}

		reply, err := w.exchange(ctx, codec.Heartbeat[W, R](w.id))
		if err != nil {
			return err
		}
		if reply.Tag != codec.TagHeartbeatOK {
			w.logger.Info().Str("reply", reply.Tag.String()).Msg("heartbeat rejected")
			return nil
		}
	}
}

// compute runs ProcessData on its own goroutine so a slow or stuck callback
// cannot block ctx cancellation from being observed.
func (w *Worker[W, R]) compute(ctx context.Context, item W) (R, error) {
	type outcome struct {
		result R
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := w.callbacks.ProcessData(item)
		ch <- outcome{result, err}
	}()

	select {
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	case o := <-ch:
		return o.result, o.err
	}
}

// exchange opens one fresh TCP connection, writes msg, half-closes, reads
// the reply, and closes. Any I/O failure is reported as a *TransportError
// and is fatal to the caller.
func (w *Worker[W, R]) exchange(ctx context.Context, msg codec.Message[W, R]) (codec.Message[W, R], error) {
	var zero codec.Message[W, R]

	addr := fmt.Sprintf("%s:%d", w.cfg.ServerAddress, w.cfg.ServerPort)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return zero, &TransportError{Op: "dial", cause: err}
	}
	defer conn.Close()

	frame, err := codec.Encode[W, R](msg, w.key)
	if err != nil {
		return zero, fmt.Errorf("worker: failed to encode %s: %w", msg.Tag, err)
	}

	if _, err := conn.Write(frame); err != nil {
		return zero, &TransportError{Op: "write", cause: err}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return zero, &TransportError{Op: "close-write", cause: err}
		}
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return zero, &TransportError{Op: "read", cause: err}
	}

	decoded, err := codec.Decode[W, R](reply, w.key)
	if err != nil {
		return zero, fmt.Errorf("worker: failed to decode reply to %s: %w", msg.Tag, err)
	}
	return decoded, nil
}
