package portutil

import (
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ListeningPort describes one bound listening TCP socket.
type ListeningPort struct {
	Port int `json:"port"`
	PID  int `json:"pid"`
}

// prober enumerates listening TCP sockets.
type prober func() ([]ListeningPort, error)

// ListeningPorts enumerates listening TCP sockets with their owning
// pid. The platform tool (lsof or netstat) is looked up once and
// memoized; when unavailable, the fallback connect-probes the given
// candidate ports and reports matches with pid 0. Used by
// reconciliation and diagnostics, never by the start path.
func (a *Allocator) ListeningPorts(candidates []int) ([]ListeningPort, error) {
	a.proberOnce.Do(func() {
		p, ok := systemProber()
		if !ok {
			log.Debug().Msg("no port enumeration tool found, using connect probe")
			return
		}
		a.sysProber = p
	})

	if a.sysProber != nil {
		ports, err := a.sysProber()
		if err == nil {
			return ports, nil
		}
		log.Warn().Err(err).Msg("port enumeration failed, using connect probe")
	}
	return connectProbe(candidates), nil
}

// connectProbe dials each candidate port on loopback and reports the
// ones that accept. A plain dial cannot learn the owning pid.
func connectProbe(candidates []int) []ListeningPort {
	var out []ListeningPort
	for _, port := range candidates {
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
		conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
		if err != nil {
			continue
		}
		conn.Close()
		out = append(out, ListeningPort{Port: port})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}
