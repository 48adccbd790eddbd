package portutil

import (
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestAllocator_FindFreePort(t *testing.T) {
	a := NewAllocator()

	port, err := a.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Fatalf("FindFreePort() = %d, want a valid port", port)
	}

	// The port must actually be bindable
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("allocated port %d not bindable: %v", port, err)
	}
	l.Close()
}

func TestAllocator_FindFreePort_NoImmediateReuse(t *testing.T) {
	a := NewAllocator()

	first, err := a.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}
	second, err := a.FindFreePort()
	if err != nil {
		t.Fatalf("second FindFreePort() error = %v", err)
	}

	if first == second {
		t.Errorf("sequential FindFreePort() calls returned the same port %d", first)
	}
}

func TestAllocator_FindFreePort_Concurrent(t *testing.T) {
	a := NewAllocator()

	const n = 20
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ports = make(map[int]bool)
	)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			port, err := a.FindFreePort()
			if err != nil {
				t.Errorf("FindFreePort() error = %v", err)
				return
			}
			mu.Lock()
			if ports[port] {
				t.Errorf("port %d handed out twice", port)
			}
			ports[port] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ports) != n {
		t.Errorf("got %d distinct ports, want %d", len(ports), n)
	}
}

func TestAllocator_ReserveWindow(t *testing.T) {
	now := time.Now()
	a := NewAllocator()
	a.now = func() time.Time { return now }

	if !a.reserve(52110) {
		t.Fatal("first reserve(52110) = false, want true")
	}
	if a.reserve(52110) {
		t.Error("reserve(52110) inside window = true, want false")
	}

	// Advance past the reservation TTL
	now = now.Add(reserveTTL + time.Second)
	if !a.reserve(52110) {
		t.Error("reserve(52110) after expiry = false, want true")
	}
}

func TestAllocator_Release(t *testing.T) {
	a := NewAllocator()

	if !a.reserve(52110) {
		t.Fatal("reserve(52110) = false, want true")
	}
	a.Release(52110)

	if !a.reserve(52110) {
		t.Error("reserve(52110) after Release = false, want true")
	}
}

func TestConnectProbe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()
	open := l.Addr().(*net.TCPAddr).Port

	// A port we just allocated and released is almost certainly closed
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	closed := probe.Addr().(*net.TCPAddr).Port
	probe.Close()

	got := connectProbe([]int{closed, open})
	if len(got) != 1 {
		t.Fatalf("connectProbe() returned %d ports, want 1", len(got))
	}
	if got[0].Port != open {
		t.Errorf("connectProbe() port = %d, want %d", got[0].Port, open)
	}
	if got[0].PID != 0 {
		t.Errorf("connectProbe() pid = %d, want 0", got[0].PID)
	}
}

func TestAllocator_ListeningPorts_IncludesOwnListener(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	a := NewAllocator()
	got, err := a.ListeningPorts([]int{port})
	if err != nil {
		t.Fatalf("ListeningPorts() error = %v", err)
	}

	found := false
	for _, lp := range got {
		if lp.Port == port {
			found = true
			// System prober reports our pid; connect-probe fallback reports 0
			if lp.PID != 0 && lp.PID != os.Getpid() {
				t.Errorf("pid for own listener = %d, want 0 or %d", lp.PID, os.Getpid())
			}
		}
	}
	if !found {
		t.Errorf("ListeningPorts() missing our listener on port %d", port)
	}
}

func TestAllocator_ListeningPorts_Fallback(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	a := NewAllocator()
	// Consume the memoized lookup so no system prober is selected
	a.proberOnce.Do(func() {})

	got, err := a.ListeningPorts([]int{port})
	if err != nil {
		t.Fatalf("ListeningPorts() error = %v", err)
	}
	if len(got) != 1 || got[0].Port != port || got[0].PID != 0 {
		t.Errorf("fallback ListeningPorts() = %+v, want [{%d 0}]", got, port)
	}
}
