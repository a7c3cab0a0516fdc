package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type State string

const (
	StateUp       State = "up"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// Component is one entry of the /health report. Count carries the size of
// whatever the component loaded (labels, metadata records).
type Component struct {
	State  State  `json:"state"`
	Count  int    `json:"count"`
	Detail string `json:"detail,omitempty"`
}

// Down reports a component that cannot serve.
func Down(err error) Component {
	return Component{State: StateDown, Detail: err.Error()}
}

type HealthChecker interface {
	Check(ctx context.Context) Component
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) Component

func (f CheckerFunc) Check(ctx context.Context) Component {
	return f(ctx)
}

type HealthReport struct {
	State      State                `json:"state"`
	CheckedAt  time.Time            `json:"checked_at"`
	Components map[string]Component `json:"components"`
}

// HealthHandler aggregates the checkers into one report. The overall state is the
// worst component state; only a down component turns the answer into a 503.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := HealthReport{
			State:      StateUp,
			CheckedAt:  time.Now().UTC(),
			Components: make(map[string]Component, len(checkers)),
		}
		for name, checker := range checkers {
			c := checker.Check(ctx)
			if rank(c.State) == rank(StateDown) {
				c.State = StateDown
			}
			report.Components[name] = c
			if rank(c.State) > rank(report.State) {
				report.State = c.State
			}
		}

		status := http.StatusOK
		if report.State == StateDown {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(report)
	}
}

// rank orders states by severity. Unknown states count as down.
func rank(s State) int {
	switch s {
	case StateUp:
		return 0
	case StateDegraded:
		return 1
	default:
		return 2
	}
}

// LivenessHandler answers 200 as long as the process can serve HTTP.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
