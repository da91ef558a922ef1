package reactor

import (
	"time"

	"github.com/ctrlai/gatewayd/internal/httpcodec"
)

// State is a Connection's lifecycle state: monotonic except
// ReadingHeaders may be re-entered after Writing on a keep-alive
// connection, and WebSocket never returns to an HTTP state.
type State int

const (
	StateReadingHeaders State = iota
	StateReadingBody
	StateProcessing
	StateWriting
	StateWebSocket
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReadingHeaders:
		return "reading_headers"
	case StateReadingBody:
		return "reading_body"
	case StateProcessing:
		return "processing"
	case StateWriting:
		return "writing"
	case StateWebSocket:
		return "websocket"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MaxReadBuffer bounds how large a Connection's read buffer may grow,
// matching HTTPCodec's body-size policy.
const MaxReadBuffer = httpcodec.MaxBodyLength + 64*1024

// Connection is one accepted socket's mutable state. It is owned
// exclusively by the Reactor and indexed by file descriptor — never
// touched from any other goroutine, so per-connection buffers need no
// locking.
type Connection struct {
	Fd    int
	State State

	readBuf  []byte
	writeBuf []byte
	writePos int

	Parser *httpcodec.Parser

	KeepAlive   bool
	ConnectedAt time.Time

	// WSSessionID is the WebSocket session identifier field. The
	// Reactor's upgrade path does not assign it, so it stays empty.
	WSSessionID string

	// wsAssembly accumulates bytes for the in-progress WebSocket frame
	// read, mirroring the HTTP read buffer's role for the WS phase.
	wsAssembly []byte
}

// NewConnection allocates connection state for a freshly accepted fd.
func NewConnection(fd int) *Connection {
	return &Connection{
		Fd:          fd,
		State:       StateReadingHeaders,
		Parser:      httpcodec.NewParser(),
		KeepAlive:   true,
		ConnectedAt: time.Now(),
	}
}

// AppendRead appends bytes drained from the socket into the read buffer,
// bounded by MaxReadBuffer.
func (c *Connection) AppendRead(b []byte) bool {
	if len(c.readBuf)+len(b) > MaxReadBuffer {
		return false
	}
	c.readBuf = append(c.readBuf, b...)
	return true
}

// ResetForNextRequest clears per-request state so a keep-alive connection
// can parse its next request.
func (c *Connection) ResetForNextRequest() {
	c.readBuf = c.readBuf[:0]
	c.writeBuf = nil
	c.writePos = 0
	c.Parser.Reset()
	c.State = StateReadingHeaders
}

// QueueWrite stages bytes to be flushed to the socket, resuming on
// subsequent EPOLLOUT events if the first write is short. An HTTP
// connection moves to StateWriting; a WebSocket connection stays in
// StateWebSocket.
func (c *Connection) QueueWrite(b []byte) {
	c.writeBuf = b
	c.writePos = 0
	if c.State != StateWebSocket {
		c.State = StateWriting
	}
}

// PendingWrite reports whether bytes remain to be flushed.
func (c *Connection) PendingWrite() bool {
	return c.writePos < len(c.writeBuf)
}

// RemainingWrite returns the slice of not-yet-written bytes.
func (c *Connection) RemainingWrite() []byte {
	return c.writeBuf[c.writePos:]
}

// AdvanceWrite records n additional bytes as flushed.
func (c *Connection) AdvanceWrite(n int) {
	c.writePos += n
}

// AppendWS appends bytes drained from the socket for WebSocket frame
// reassembly.
func (c *Connection) AppendWS(b []byte) {
	c.wsAssembly = append(c.wsAssembly, b...)
}

// WSBuffer returns the current unconsumed WebSocket byte buffer.
func (c *Connection) WSBuffer() []byte {
	return c.wsAssembly
}

// ConsumeWS drops the first n bytes of the WebSocket buffer once a frame
// has been decoded from them.
func (c *Connection) ConsumeWS(n int) {
	c.wsAssembly = append([]byte(nil), c.wsAssembly[n:]...)
}
