// Package health gates workspace backend readiness on an HTTP endpoint
// answering successfully.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workspaced/internal/domain"
)

const (
	// defaultAttemptTimeout bounds one probe so a hung attempt cannot
	// silently consume the whole readiness budget.
	defaultAttemptTimeout = 2 * time.Second

	// defaultInterval spaces successive probes.
	defaultInterval = 250 * time.Millisecond
)

// Checker polls loopback HTTP endpoints until they respond.
type Checker struct {
	client   *http.Client
	interval time.Duration
}

// NewChecker creates a health checker with the default per-attempt
// timeout and probe interval.
func NewChecker() *Checker {
	return NewCheckerWithTimeouts(defaultAttemptTimeout, defaultInterval)
}

// NewCheckerWithTimeouts creates a health checker with explicit
// per-attempt timeout and probe interval.
func NewCheckerWithTimeouts(attemptTimeout, interval time.Duration) *Checker {
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Checker{
		client:   &http.Client{Timeout: attemptTimeout},
		interval: interval,
	}
}

// Check issues a single GET against http://127.0.0.1:{port}{path}.
// Any 2xx response is healthy.
func (c *Checker) Check(ctx context.Context, port int, path string) bool {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// WaitUntilHealthy polls until the endpoint answers with a success
// status or ctx is done. Each attempt carries its own short timeout,
// separate from the overall ctx budget.
func (c *Checker) WaitUntilHealthy(ctx context.Context, port int, path string) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		if c.Check(ctx, port, path) {
			log.Debug().Str("url", url).Int("attempts", attempts).Msg("endpoint healthy")
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %d attempts", domain.ErrHealthTimeout, url, attempts)
		case <-ticker.C:
		}
	}
}
