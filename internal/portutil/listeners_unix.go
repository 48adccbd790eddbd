//go:build !windows

package portutil

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// systemProber returns the lsof-based prober when lsof is on PATH.
func systemProber() (prober, bool) {
	if _, err := exec.LookPath("lsof"); err != nil {
		return nil, false
	}
	return lsofListeners, true
}

// lsofListeners runs lsof in field-output mode over listening TCP
// sockets.
func lsofListeners() ([]ListeningPort, error) {
	out, err := exec.Command("lsof", "-nP", "-iTCP", "-sTCP:LISTEN", "-Fpn").Output()
	if err != nil {
		return nil, fmt.Errorf("running lsof: %w", err)
	}
	return parseLsofOutput(string(out)), nil
}

// parseLsofOutput parses lsof -F lines. Each line carries a one-letter
// field prefix: p<pid> starts a process group, n<addr>:<port> names a
// bound socket. Dual-stack listeners repeat the port and are deduped.
func parseLsofOutput(out string) []ListeningPort {
	var (
		res  []ListeningPort
		pid  int
		seen = make(map[int]bool)
	)
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case 'p':
			if v, err := strconv.Atoi(line[1:]); err == nil {
				pid = v
			}
		case 'n':
			idx := strings.LastIndex(line, ":")
			if idx < 0 {
				continue
			}
			port, err := strconv.Atoi(line[idx+1:])
			if err != nil || port == 0 || seen[port] {
				continue
			}
			seen[port] = true
			res = append(res, ListeningPort{Port: port, PID: pid})
		}
	}
	return res
}
