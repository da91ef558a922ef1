package gateway

import (
	"fmt"
	"log/slog"

	"github.com/ctrlai/gatewayd/internal/config"
	"github.com/ctrlai/gatewayd/internal/reactor"
	"github.com/ctrlai/gatewayd/internal/session"
	"github.com/ctrlai/gatewayd/internal/sysnotify"
	"github.com/ctrlai/gatewayd/internal/tool"
)

// Supervisor owns every long-lived subsystem gatewayd needs and the
// Reactor that drives them.
type Supervisor struct {
	log      *slog.Logger
	cfg      *config.Config
	sessions *session.Store
	tools    *tool.Registry
	handlers *Handlers
	react    *reactor.Reactor
	notify   *sysnotify.Notifier
}

// NewSupervisor wires the session store, tool registry, handlers, and
// reactor together. It opens the SQLite-backed session store but does
// not yet bind to a socket — call Run to start serving.
func NewSupervisor(log *slog.Logger, cfg *config.Config) (*Supervisor, error) {
	store, err := session.Open(cfg.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("gatewayd: failed to open session store: %w", err)
	}

	registry := tool.NewRegistry()

	h := New(log, cfg, store, registry)
	react := reactor.New(log, h)
	h.SetReactor(react)

	return &Supervisor{
		log:      log,
		cfg:      cfg,
		sessions: store,
		tools:    registry,
		handlers: h,
		react:    react,
		notify:   sysnotify.New(),
	}, nil
}

// Run binds the reactor's listening socket and blocks until Stop is
// called or the reactor's loop exits with an error. It notifies systemd
// (if NOTIFY_SOCKET is set) only after the listen socket is actually
// bound, not merely after the bind goroutine is launched.
func (s *Supervisor) Run() error {
	defer s.sessions.Close()
	defer s.notify.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.react.Start(reactor.Config{Bind: s.cfg.Server.Host, Port: s.cfg.Server.Port})
	}()

	select {
	case <-s.react.Ready():
		s.notify.Ready()
		s.log.Info("gatewayd listening", "host", s.cfg.Server.Host, "port", s.cfg.Server.Port)
	case err := <-errCh:
		return err
	}

	return <-errCh
}

// Stop signals the reactor to shut down and notifies systemd.
func (s *Supervisor) Stop() {
	s.notify.Stopping()
	s.react.Stop()
}

// ActiveConnections reports the reactor's current connection count.
func (s *Supervisor) ActiveConnections() int {
	return s.react.ActiveConnections()
}

// TotalRequests reports the lifetime request count.
func (s *Supervisor) TotalRequests() int64 {
	return s.react.TotalRequests()
}

// Sessions exposes the session store.
func (s *Supervisor) Sessions() *session.Store {
	return s.sessions
}

// Tools exposes the tool registry.
func (s *Supervisor) Tools() *tool.Registry {
	return s.tools
}
