// Command healthcheck is the container health probe. It exits 0 when the
// status API answers and the agent loop has completed a cycle recently.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	defaultAddr     = "127.0.0.1:8080"
	defaultInterval = 60 * time.Second

	// staleCycles is how many poll intervals may pass without a finished cycle.
	staleCycles = 3
	// cycleAllowance covers one long-running cycle on top of the intervals.
	cycleAllowance = 15 * time.Minute
)

type statusResponse struct {
	LastCycle *struct {
		FinishedAt time.Time `json:"finished_at"`
	} `json:"last_cycle"`
}

func main() {
	os.Exit(check(time.Now()))
}

func check(now time.Time) int {
	addr := normalizeAddr(os.Getenv("ELVAGENT_LISTEN_ADDR"))
	interval := parseInterval(os.Getenv("ELVAGENT_POLL_INTERVAL"))

	client := &http.Client{Timeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/status", addr), nil)
	if err != nil {
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return 1
	}

	if stale(status, interval, now) {
		fmt.Fprintln(os.Stderr, "agent loop has not completed a cycle recently")
		return 1
	}
	return 0
}

// stale reports whether the last finished cycle is older than the allowed
// window. No cycle yet counts as healthy; the first one may still be running.
func stale(s statusResponse, interval time.Duration, now time.Time) bool {
	if s.LastCycle == nil {
		return false
	}
	return now.Sub(s.LastCycle.FinishedAt) > staleCycles*interval+cycleAllowance
}

func parseInterval(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultInterval
	}
	return d
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address. Docker containers bind 0.0.0.0 but the healthcheck runs
// inside the same container, so loopback is reachable and more correct.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
