// Package portutil allocates loopback ports for workspace backend
// servers and enumerates listening sockets for reconciliation and
// diagnostics.
package portutil

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/brianly1003/workspaced/internal/domain"
)

// reserveTTL is how long an issued port stays off-limits before it may
// be handed out again. Covers the window between allocation and the
// backend actually binding the port.
const reserveTTL = 30 * time.Second

// maxAttempts bounds how many ephemeral binds FindFreePort tries before
// giving up. Only reached when the OS keeps recycling reserved ports.
const maxAttempts = 10

// Allocator hands out free loopback ports.
type Allocator struct {
	mu       sync.Mutex
	reserved map[int]time.Time

	proberOnce sync.Once
	sysProber  prober

	now func() time.Time
}

// NewAllocator creates a port allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		reserved: make(map[int]time.Time),
		now:      time.Now,
	}
}

// FindFreePort binds an ephemeral listener on 127.0.0.1:0, reads the
// OS-assigned port, and releases the listener. Recently issued ports
// are skipped, so concurrent and rapid sequential callers never
// receive the same port.
func (a *Allocator) FindFreePort() (int, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return 0, fmt.Errorf("binding ephemeral port: %w", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		l.Close()

		if a.reserve(port) {
			return port, nil
		}
	}
	return 0, domain.ErrNoFreePort
}

// reserve marks the port as issued. Returns false when the port is
// still inside its reservation window.
func (a *Allocator) reserve(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if issued, ok := a.reserved[port]; ok && now.Sub(issued) < reserveTTL {
		return false
	}
	// Drop expired reservations while we hold the lock
	for p, at := range a.reserved {
		if now.Sub(at) >= reserveTTL {
			delete(a.reserved, p)
		}
	}
	a.reserved[port] = now
	return true
}

// Release returns a port to the pool before its reservation expires.
// Called when a start attempt fails after allocation.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}
