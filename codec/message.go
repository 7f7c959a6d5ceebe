package codec

import "github.com/willi-kappler/crunchgrid/nodeid"

// Tag discriminates the wire message variants. It is the first thing a
// dispatcher or worker runtime switches on after decoding a frame.
type Tag uint8

const (
	// TagHeartbeat through TagResult travel worker -> coordinator.
	TagHeartbeat Tag = iota
	TagInit
	TagNeedData
	TagResult

	// TagHeartbeatOK through TagQuit travel coordinator -> worker.
	TagHeartbeatOK
	TagHeartbeatError
	TagInitOK
	TagInitError
	TagNewData
	TagResultOK
	TagQuit

	// TagConnectionError never appears on the wire. The coordinator's
	// dispatcher returns it internally for a request tag it cannot handle,
	// and the connection is then closed without a reply. The worker runtime
	// reports transport failures as a worker.TransportError, not as this tag.
	TagConnectionError
)

// String renders a Tag for logging.
func (t Tag) String() string {
	switch t {
	case TagHeartbeat:
		return "Heartbeat"
	case TagInit:
		return "Init"
	case TagNeedData:
		return "NeedData"
	case TagResult:
		return "Result"
	case TagHeartbeatOK:
		return "HeartbeatOK"
	case TagHeartbeatError:
		return "HeartbeatError"
	case TagInitOK:
		return "InitOK"
	case TagInitError:
		return "InitError"
	case TagNewData:
		return "NewData"
	case TagResultOK:
		return "ResultOK"
	case TagQuit:
		return "Quit"
	case TagConnectionError:
		return "ConnectionError"
	default:
		return "Unknown"
	}
}

// Message is the tagged union exchanged between one coordinator and one
// worker. W is the work-item type, R is the result type; both are whatever
// concrete type the caller's codec can serialize — no method set is
// required of them. Only the fields relevant to Tag are populated; the
// rest are left at their zero value.
type Message[W, R any] struct {
	Tag Tag

	// NodeID identifies the sending worker. Present on every worker -> coordinator
	// variant (Heartbeat, Init, NeedData, Result).
	NodeID nodeid.ID

	// InitData carries the InitOK payload: whatever GetInitData returned for
	// this worker. It is intentionally untyped so a coordinator and worker
	// built against different W/R instantiations can still share the same
	// init handshake shape.
	InitData any

	// Item carries the NewData payload. A nil Item is the "no-work-yet"
	// sentinel: the job is not done, but no unit is currently free.
	Item *W

	// Result carries the Result payload sent by a worker that finished Item.
	Result R
}

// Heartbeat builds a Tag-Heartbeat message from the given worker id.
func Heartbeat[W, R any](id nodeid.ID) Message[W, R] {
	return Message[W, R]{Tag: TagHeartbeat, NodeID: id}
}

// Init builds a Tag-Init message from the given worker id.
func Init[W, R any](id nodeid.ID) Message[W, R] {
	return Message[W, R]{Tag: TagInit, NodeID: id}
}

// NeedData builds a Tag-NeedData message from the given worker id.
func NeedData[W, R any](id nodeid.ID) Message[W, R] {
	return Message[W, R]{Tag: TagNeedData, NodeID: id}
}

// Result builds a Tag-Result message carrying the worker's computed result.
func Result[W, R any](id nodeid.ID, result R) Message[W, R] {
	return Message[W, R]{Tag: TagResult, NodeID: id, Result: result}
}

// HeartbeatOK, HeartbeatError, InitError, ResultOK, and Quit are bare-tag
// replies with no payload.
func HeartbeatOK[W, R any]() Message[W, R]    { return Message[W, R]{Tag: TagHeartbeatOK} }
func HeartbeatError[W, R any]() Message[W, R] { return Message[W, R]{Tag: TagHeartbeatError} }
func InitError[W, R any]() Message[W, R]      { return Message[W, R]{Tag: TagInitError} }
func ResultOK[W, R any]() Message[W, R]       { return Message[W, R]{Tag: TagResultOK} }
func Quit[W, R any]() Message[W, R]           { return Message[W, R]{Tag: TagQuit} }

// InitOK builds a Tag-InitOK reply carrying the new worker's init payload.
func InitOK[W, R any](data any) Message[W, R] {
	return Message[W, R]{Tag: TagInitOK, InitData: data}
}

// NewData builds a Tag-NewData reply. item == nil sends the "no-work-yet"
// sentinel.
func NewData[W, R any](item *W) Message[W, R] {
	return Message[W, R]{Tag: TagNewData, Item: item}
}

// ConnectionError builds the internal-only TagConnectionError message. It is
// never encoded onto the wire; see TagConnectionError.
func ConnectionError[W, R any]() Message[W, R] {
	return Message[W, R]{Tag: TagConnectionError}
}
