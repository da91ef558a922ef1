package reactor

import (
	"os"
	"os/signal"
)

// signalIgnore wraps signal.Ignore so the epoll-specific file can call it
// without importing os/signal directly, keeping all syscall-adjacent
// plumbing in one place.
func signalIgnore(sig os.Signal) {
	signal.Ignore(sig)
}
