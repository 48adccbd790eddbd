package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianly1003/workspaced/internal/domain"
)

func serverPort(t *testing.T, ts *httptest.Server) int {
	t.Helper()
	return ts.Listener.Addr().(*net.TCPAddr).Port
}

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"redirect", http.StatusMovedPermanently, false},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, false},
		{"unavailable", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			c := NewChecker()
			// Follow no redirects so 3xx statuses are judged as-is
			c.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}

			if got := c.Check(context.Background(), serverPort(t, ts), "/health"); got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecker_Check_ConnectionRefused(t *testing.T) {
	// Allocate and immediately release a port so nothing listens on it
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	c := NewChecker()
	if c.Check(context.Background(), port, "/health") {
		t.Error("Check() = true for a closed port")
	}
}

func TestChecker_WaitUntilHealthy_EventualSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewChecker()
	c.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.WaitUntilHealthy(ctx, serverPort(t, ts), "/health"); err != nil {
		t.Fatalf("WaitUntilHealthy() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("handler called %d times, want at least 3", got)
	}
}

func TestChecker_WaitUntilHealthy_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewChecker()
	c.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.WaitUntilHealthy(ctx, serverPort(t, ts), "/health")
	if err == nil {
		t.Fatal("WaitUntilHealthy() = nil, want timeout error")
	}
	if !errors.Is(err, domain.ErrHealthTimeout) {
		t.Errorf("error = %v, want ErrHealthTimeout", err)
	}
}

func TestChecker_WaitUntilHealthy_CanceledEarly(t *testing.T) {
	// Never-healthy endpoint; cancellation must end the wait promptly
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	c := NewChecker()
	c.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = c.WaitUntilHealthy(ctx, port, "/health")
	if err == nil {
		t.Fatal("WaitUntilHealthy() = nil, want error after cancel")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitUntilHealthy() took %v after cancel, want prompt return", elapsed)
	}
}
