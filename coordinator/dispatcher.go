package coordinator

import (
	"io"
	"net"
	"time"

	"github.com/willi-kappler/crunchgrid/codec"
)

// handleConn serves exactly one request over conn: it reads until the peer
// half-closes its write side, decodes the frame, dispatches it, encodes a
// reply, writes it, and closes the connection. There is no length prefix —
// one request, one reply, one connection.
func (c *Coordinator[W, R]) handleConn(conn net.Conn) {
	defer conn.Close()

	frame, err := io.ReadAll(conn)
	if err != nil {
		c.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("failed to read request")
		return
	}

	msg, err := codec.Decode[W, R](frame, c.key)
	if err != nil {
		c.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("failed to decode request")
		return
	}

	reply := c.dispatch(msg)
	if reply.Tag == codec.TagConnectionError {
		// Unexpected request tag: close without a reply, since
		// ConnectionError is never sent on the wire.
		return
	}

	out, err := codec.Encode[W, R](reply, c.key)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode reply")
		return
	}

	if _, err := conn.Write(out); err != nil {
		c.logger.Warn().Err(err).Msg("failed to write reply")
	}
}

// dispatch applies one decoded message against coordinator state and
// returns the reply to send back. It holds state.mu for the duration,
// which is also held across the matching Callbacks invocation.
func (c *Coordinator[W, R]) dispatch(msg codec.Message[W, R]) codec.Message[W, R] {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if c.state.quitting {
		return codec.Quit[W, R]()
	}

	now := time.Now()

	switch msg.Tag {
	case codec.TagInit:
		return c.dispatchInit(msg, now)
	case codec.TagHeartbeat:
		return c.dispatchHeartbeat(msg, now)
	case codec.TagNeedData:
		return c.dispatchNeedData(msg, now)
	case codec.TagResult:
		return c.dispatchResult(msg, now)
	default:
		c.logger.Warn().Str("tag", msg.Tag.String()).Msg("unexpected message tag")
		return codec.ConnectionError[W, R]()
	}
}

func (c *Coordinator[W, R]) dispatchInit(msg codec.Message[W, R], now time.Time) codec.Message[W, R] {
	if c.state.knows(msg.NodeID) {
		perr := &ProtocolError{Reason: "init from already-registered worker " + msg.NodeID.String()}
		c.logger.Warn().Err(perr).Msg("rejecting init")
		return codec.InitError[W, R]()
	}

	data, err := c.callbacks.GetInitData(msg.NodeID)
	if err != nil {
		c.failCallback("GetInitData", err)
		return codec.InitError[W, R]()
	}

	c.state.register(msg.NodeID, now)
	if c.metrics != nil {
		c.metrics.WorkersRegistered.Inc()
	}
	c.logger.Info().Str("worker", msg.NodeID.String()).Msg("worker registered")

	return codec.InitOK[W, R](data)
}

func (c *Coordinator[W, R]) dispatchHeartbeat(msg codec.Message[W, R], now time.Time) codec.Message[W, R] {
	if !c.state.knows(msg.NodeID) {
		perr := &ProtocolError{Reason: "heartbeat from unknown worker " + msg.NodeID.String()}
		c.logger.Warn().Err(perr).Msg("rejecting heartbeat")
		return codec.HeartbeatError[W, R]()
	}
	c.state.touch(msg.NodeID, now)
	return codec.HeartbeatOK[W, R]()
}

// dispatchNeedData and dispatchResult both reply InitError on an unknown
// worker id — the same reply Init uses for its own precondition failure.
// The worker treats that reply as terminal: it stops rather than retrying
// or re-registering.
func (c *Coordinator[W, R]) dispatchNeedData(msg codec.Message[W, R], now time.Time) codec.Message[W, R] {
	if !c.state.knows(msg.NodeID) {
		perr := &ProtocolError{Reason: "need-data from unknown worker " + msg.NodeID.String()}
		c.logger.Warn().Err(perr).Msg("rejecting need-data")
		return codec.InitError[W, R]()
	}
	c.state.touch(msg.NodeID, now)

	item, err := c.callbacks.GetNewData(msg.NodeID)
	if err != nil {
		c.failCallback("GetNewData", err)
		return codec.InitError[W, R]()
	}
	return codec.NewData[W, R](item)
}

func (c *Coordinator[W, R]) dispatchResult(msg codec.Message[W, R], now time.Time) codec.Message[W, R] {
	if !c.state.knows(msg.NodeID) {
		perr := &ProtocolError{Reason: "result from unknown worker " + msg.NodeID.String()}
		c.logger.Warn().Err(perr).Msg("rejecting result")
		return codec.InitError[W, R]()
	}
	c.state.touch(msg.NodeID, now)

	if err := c.callbacks.ProcessResult(msg.NodeID, msg.Result); err != nil {
		c.failCallback("ProcessResult", err)
		return codec.InitError[W, R]()
	}
	if c.metrics != nil {
		c.metrics.ResultsProcessed.Inc()
	}
	return codec.ResultOK[W, R]()
}

// failCallback records a user callback failure. Callers hold state.mu.
func (c *Coordinator[W, R]) failCallback(name string, err error) {
	uerr := &UserError{Callback: name, cause: err}
	c.logger.Error().Err(uerr).Msg("callback failed")
	if c.callbacks.OnCallbackError != nil {
		c.callbacks.OnCallbackError(uerr)
		return
	}
	if c.state.fatalErr == nil {
		c.state.fatalErr = uerr
	}
}
