//go:build windows

package portutil

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// systemProber returns the netstat-based prober when netstat is on
// PATH.
func systemProber() (prober, bool) {
	if _, err := exec.LookPath("netstat"); err != nil {
		return nil, false
	}
	return netstatListeners, true
}

// netstatListeners runs netstat over listening TCP sockets.
func netstatListeners() ([]ListeningPort, error) {
	out, err := exec.Command("netstat", "-ano", "-p", "TCP").Output()
	if err != nil {
		return nil, fmt.Errorf("running netstat: %w", err)
	}
	return parseNetstatOutput(string(out)), nil
}

// parseNetstatOutput parses netstat -ano rows of the form:
//
//	TCP  127.0.0.1:52110  0.0.0.0:0  LISTENING  1234
func parseNetstatOutput(out string) []ListeningPort {
	var res []ListeningPort
	seen := make(map[int]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "TCP" || fields[3] != "LISTENING" {
			continue
		}
		idx := strings.LastIndex(fields[1], ":")
		if idx < 0 {
			continue
		}
		port, err := strconv.Atoi(fields[1][idx+1:])
		if err != nil || port == 0 || seen[port] {
			continue
		}
		pid, err := strconv.Atoi(fields[4])
		if err != nil {
			continue
		}
		seen[port] = true
		res = append(res, ListeningPort{Port: port, PID: pid})
	}
	return res
}
