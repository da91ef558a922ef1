package reactor

import (
	"github.com/ctrlai/gatewayd/internal/httpcodec"
	"github.com/ctrlai/gatewayd/internal/wscodec"
)

// Outcome is what a Dispatcher returns for one parsed HTTP request.
type Outcome struct {
	// Response is the fully-built response bytes, valid when Async is
	// false.
	Response []byte

	// Async indicates the handler's work (an upstream call) was handed
	// to a worker; the Reactor should leave the connection in
	// StateProcessing and wait for a Completion delivered through
	// NotifyCompletion instead of writing Response now.
	Async bool

	// Upgrade and WSSessionID are not read by the Reactor: it
	// recognizes WebSocket upgrade requests itself
	// (wscodec.IsUpgradeRequest), answers them with the 101 handshake
	// and moves the connection to StateWebSocket without calling
	// Dispatch.
	Upgrade bool

	WSSessionID string
}

// Completion is delivered asynchronously once a worker finishes handling
// a request dispatched with Outcome.Async == true.
type Completion struct {
	Fd       int
	Response []byte
}

// Dispatcher is implemented by the gateway package and invoked by the
// Reactor once HTTPCodec has produced a complete ParsedRequest that is not
// a WebSocket upgrade, or once WSCodec has decoded a frame on an upgraded
// connection. Keeping this as
// an interface (rather than importing the gateway package directly) keeps
// the Reactor a standalone, reusable event loop — the gateway's Handlers
// are just one possible Dispatcher.
type Dispatcher interface {
	Dispatch(conn *Connection, req *httpcodec.ParsedRequest) Outcome
	OnWSFrame(conn *Connection, frame wscodec.Frame) (reply []byte, closeConn bool)
}
