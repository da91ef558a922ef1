//go:build linux

// Package reactor implements the gateway's non-blocking, single-threaded,
// edge-triggered event loop over Linux epoll. It is the from-scratch
// counterpart to net/http's server loop: one goroutine polls a single
// epoll fd and drives every accepted connection through HTTPCodec/WSCodec
// without per-connection goroutines or locks.
package reactor

import (
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ctrlai/gatewayd/internal/httpcodec"
	"github.com/ctrlai/gatewayd/internal/wscodec"
)

// pollTimeoutMillis bounds how long EpollWait blocks per iteration, so
// Stop() is observed within roughly one second.
const pollTimeoutMillis = 1000

const maxEpollEvents = 256

// Reactor is the single-threaded accept/read/write event loop.
type Reactor struct {
	log *slog.Logger

	epfd     int
	listenFd int

	conns      *connTable
	dispatcher Dispatcher

	running bool
	stopCh  chan struct{}

	// notifyR/notifyW are the read/write ends of a self-pipe used to
	// wake EpollWait when a worker goroutine finishes an async
	// dispatch — see NotifyCompletion.
	notifyR int
	notifyW int

	completionsMu sync.Mutex
	completions   []Completion

	totalRequests int64
	statsMu       sync.Mutex

	readyCh chan struct{}
}

// Config bundles the listener parameters the Reactor needs at Start time.
type Config struct {
	Bind string
	Port int
}

// New creates a Reactor bound to dispatcher for request handling. The
// listening socket is not created until Start is called.
func New(log *slog.Logger, dispatcher Dispatcher) *Reactor {
	return &Reactor{
		log:        log,
		conns:      newConnTable(),
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
		readyCh:    make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the listen socket is bound
// and accepting connections. Callers that need to know when it is safe to
// report liveness (e.g. systemd's READY=1) should select on it alongside
// Start's error return.
func (r *Reactor) Ready() <-chan struct{} {
	return r.readyCh
}

// Start binds the listen socket, registers it plus the wake-pipe with
// epoll, and blocks running the event loop until Stop is called or an
// unrecoverable error occurs.
func (r *Reactor) Start(cfg Config) error {
	// SIGPIPE is ignored globally; writes to a closed socket surface as
	// EPIPE on the write call instead of killing the process.
	signalIgnoreSIGPIPE()

	listenFd, err := createListenSocket(cfg.Bind, cfg.Port)
	if err != nil {
		return err
	}
	r.listenFd = listenFd
	close(r.readyCh)

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(listenFd)
		return err
	}
	r.epfd = epfd

	if err := r.addFd(listenFd, unix.EPOLLIN|unix.EPOLLET); err != nil {
		return err
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_NONBLOCK); err != nil {
		return err
	}
	r.notifyR, r.notifyW = pipeFds[0], pipeFds[1]
	if err := r.addFd(r.notifyR, unix.EPOLLIN|unix.EPOLLET); err != nil {
		return err
	}

	r.running = true
	events := make([]unix.EpollEvent, maxEpollEvents)

	for r.running {
		n, err := unix.EpollWait(r.epfd, events, pollTimeoutMillis)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			flags := events[i].Events

			switch {
			case fd == r.listenFd:
				r.acceptLoop()
			case fd == r.notifyR:
				r.drainNotifyPipe()
				r.runCompletions()
			default:
				r.handleConnEvent(fd, flags)
			}
		}
	}

	r.cleanup()
	return nil
}

// Stop requests the loop exit on its next iteration (≤1s latency).
func (r *Reactor) Stop() {
	r.running = false
}

// ActiveConnections reports the live connection count for /health.
func (r *Reactor) ActiveConnections() int {
	return r.conns.Active()
}

// TotalRequests reports the cumulative count of complete HTTP requests
// the Reactor has parsed, WebSocket upgrades included. The /health
// endpoint reports the gateway Handlers' own counter, not this one.
func (r *Reactor) TotalRequests() int64 {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.totalRequests
}

func (r *Reactor) bumpRequests() {
	r.statsMu.Lock()
	r.totalRequests++
	r.statsMu.Unlock()
}

// NotifyCompletion is called by a worker goroutine (never the reactor
// goroutine itself) once an async Dispatch's upstream call finishes. It
// queues the completion and wakes EpollWait via the self-pipe.
func (r *Reactor) NotifyCompletion(c Completion) {
	r.completionsMu.Lock()
	r.completions = append(r.completions, c)
	r.completionsMu.Unlock()
	_, _ = unix.Write(r.notifyW, []byte{1})
}

func (r *Reactor) drainNotifyPipe() {
	buf := make([]byte, 256)
	for {
		_, err := unix.Read(r.notifyR, buf)
		if err != nil {
			return
		}
	}
}

func (r *Reactor) runCompletions() {
	r.completionsMu.Lock()
	batch := r.completions
	r.completions = nil
	r.completionsMu.Unlock()

	for _, c := range batch {
		conn, ok := r.conns.get(c.Fd)
		if !ok {
			continue
		}
		conn.QueueWrite(c.Response)
		r.flushWrite(conn)
	}
}

func (r *Reactor) addFd(fd int, events uint32) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Fd:     int32(fd),
		Events: events,
	})
}

func (r *Reactor) modifyFd(fd int, events uint32) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Fd:     int32(fd),
		Events: events,
	})
}

func (r *Reactor) removeFd(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// acceptLoop drains the accept queue until EAGAIN.
func (r *Reactor) acceptLoop() {
	for {
		nfd, _, err := unix.Accept4(r.listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			r.log.Warn("accept failed", "error", err)
			return
		}

		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		conn := NewConnection(nfd)
		r.conns.put(nfd, conn)
		if err := r.addFd(nfd, unix.EPOLLIN|unix.EPOLLET); err != nil {
			r.log.Warn("epoll add failed", "fd", nfd, "error", err)
			r.closeConn(conn)
		}
	}
}

func (r *Reactor) handleConnEvent(fd int, flags uint32) {
	conn, ok := r.conns.get(fd)
	if !ok {
		return
	}

	if flags&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		r.closeConn(conn)
		return
	}

	if flags&unix.EPOLLOUT != 0 && conn.PendingWrite() {
		r.flushWrite(conn)
		return
	}

	if flags&unix.EPOLLIN != 0 {
		r.drainAndProcess(conn)
	}
}

// drainAndProcess reads all currently available bytes (edge-triggered:
// must drain to EAGAIN) and feeds them to the appropriate codec.
func (r *Reactor) drainAndProcess(conn *Connection) {
	buf := make([]byte, 64*1024)
	for {
		n, err := unix.Read(conn.Fd, buf)
		if n > 0 {
			if conn.State == StateWebSocket {
				conn.AppendWS(buf[:n])
			} else {
				if !conn.AppendRead(buf[:n]) {
					r.closeConn(conn)
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				break
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			r.closeConn(conn)
			return
		}
		if n == 0 {
			r.closeConn(conn)
			return
		}
		if n < len(buf) {
			break
		}
	}

	if conn.State == StateWebSocket {
		r.processWSFrames(conn)
		return
	}
	r.processHTTP(conn)
}

func (r *Reactor) processHTTP(conn *Connection) {
	status, err := conn.Parser.Feed(conn.readBuf)
	conn.readBuf = conn.readBuf[:0]

	switch status {
	case httpcodec.NeedMore:
		return
	case httpcodec.ProtocolError:
		r.log.Warn("protocol error", "fd", conn.Fd, "error", err)
		r.closeConn(conn)
		return
	case httpcodec.Complete:
		r.bumpRequests()
		conn.State = StateProcessing
		req := conn.Parser.Request()
		conn.KeepAlive = req.KeepAlive()

		if wscodec.IsUpgradeRequest(req) {
			r.handleUpgrade(conn, req)
			return
		}

		outcome := r.dispatcher.Dispatch(conn, req)
		if outcome.Async {
			return
		}
		r.finishRequest(conn, outcome.Response)
	}
}

func (r *Reactor) handleUpgrade(conn *Connection, req *httpcodec.ParsedRequest) {
	key, _ := req.Headers.Get("Sec-WebSocket-Key")
	resp := wscodec.BuildAcceptResponse(key)
	conn.State = StateWebSocket
	conn.QueueWrite(resp)
	r.flushWrite(conn)
}

func (r *Reactor) finishRequest(conn *Connection, response []byte) {
	conn.QueueWrite(response)
	r.flushWrite(conn)
}

// flushWrite writes as much of the pending buffer as the socket accepts
// right now, arming EPOLLOUT if bytes remain — the resumable-short-write
// discipline HTTPCodec/WSCodec both rely on.
func (r *Reactor) flushWrite(conn *Connection) {
	for conn.PendingWrite() {
		n, err := unix.Write(conn.Fd, conn.RemainingWrite())
		if n > 0 {
			conn.AdvanceWrite(n)
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				_ = r.modifyFd(conn.Fd, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLET)
				return
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			// EPIPE and friends: the peer is gone.
			r.closeConn(conn)
			return
		}
	}

	// Fully flushed.
	if conn.State == StateWebSocket {
		_ = r.modifyFd(conn.Fd, unix.EPOLLIN|unix.EPOLLET)
		return
	}

	if conn.KeepAlive {
		conn.ResetForNextRequest()
		_ = r.modifyFd(conn.Fd, unix.EPOLLIN|unix.EPOLLET)
	} else {
		r.closeConn(conn)
	}
}

// processWSFrames decodes as many complete frames as are buffered,
// dispatching each to the Dispatcher and writing any reply.
func (r *Reactor) processWSFrames(conn *Connection) {
	for {
		frame, n, err := wscodec.ReadFrame(conn.WSBuffer())
		if err == wscodec.ErrIncomplete {
			return
		}
		if err != nil {
			r.closeConn(conn)
			return
		}
		conn.ConsumeWS(n)

		if frame.Opcode == wscodec.OpClose {
			conn.QueueWrite(wscodec.CloseFrame(1000))
			r.flushWrite(conn)
			r.closeConn(conn)
			return
		}

		reply, shouldClose := r.dispatcher.OnWSFrame(conn, frame)
		if reply != nil {
			conn.QueueWrite(reply)
			r.flushWrite(conn)
		}
		if shouldClose {
			r.closeConn(conn)
			return
		}
	}
}

func (r *Reactor) closeConn(conn *Connection) {
	if conn.State == StateClosed {
		return
	}
	conn.State = StateClosed
	r.removeFd(conn.Fd)
	r.conns.remove(conn.Fd)
	_ = unix.Close(conn.Fd)
}

func (r *Reactor) cleanup() {
	if r.listenFd != 0 {
		_ = unix.Close(r.listenFd)
	}
	if r.notifyR != 0 {
		_ = unix.Close(r.notifyR)
	}
	if r.notifyW != 0 {
		_ = unix.Close(r.notifyW)
	}
	if r.epfd != 0 {
		_ = unix.Close(r.epfd)
	}
}

func signalIgnoreSIGPIPE() {
	signalIgnore(syscall.SIGPIPE)
}

// createListenSocket builds the listening TCP socket by hand (rather than
// net.Listen) so SO_REUSEADDR/SO_REUSEPORT can be set explicitly and so
// the fd can be registered directly with epoll. It always builds a plain
// TCP socket — TLS termination is rejected at config validation time
// instead (see config.validate), since crypto/tls expects a blocking
// net.Conn and cannot be layered onto a non-blocking edge-triggered fd
// without defeating the single-thread reactor model.
func createListenSocket(bind string, port int) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp4", net.JoinHostPort(bind, strconv.Itoa(port)))
	if err != nil {
		return 0, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return 0, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}

	var sockaddr unix.SockaddrInet4
	sockaddr.Port = port
	if ip4 := addr.IP.To4(); ip4 != nil {
		copy(sockaddr.Addr[:], ip4)
	}

	if err := unix.Bind(fd, &sockaddr); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return 0, err
	}

	return fd, nil
}

