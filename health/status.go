// Package health tracks the liveness of the middleware's moving parts:
// the transport session, the graph watcher, and the nodes built on top
// of them. Statuses aggregate bottom-up so one call answers "is this
// participant usable right now".
package health

import (
	"time"
)

// State is the coarse health classification of one component.
type State string

// Health states, ordered from best to worst.
const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// Status is the health of one component at one instant.
type Status struct {
	Component   string    `json:"component"`
	State       State     `json:"state"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// Healthy reports whether the status is fully healthy.
func (s Status) Healthy() bool { return s.State == StateHealthy }

// NewHealthy builds a healthy status stamped now.
func NewHealthy(component, message string) Status {
	return Status{Component: component, State: StateHealthy, Message: message, Timestamp: time.Now()}
}

// NewDegraded builds a degraded status stamped now.
func NewDegraded(component, message string) Status {
	return Status{Component: component, State: StateDegraded, Message: message, Timestamp: time.Now()}
}

// NewUnhealthy builds an unhealthy status stamped now.
func NewUnhealthy(component, message string) Status {
	return Status{Component: component, State: StateUnhealthy, Message: message, Timestamp: time.Now()}
}

// worse returns the lower of two states.
func worse(a, b State) State {
	rank := map[State]int{StateHealthy: 0, StateDegraded: 1, StateUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Aggregate folds component statuses into one parent status. The parent
// takes the worst child state; with no children it is healthy.
func Aggregate(component string, statuses []Status) Status {
	agg := NewHealthy(component, "")
	for _, s := range statuses {
		agg.State = worse(agg.State, s.State)
	}
	agg.SubStatuses = statuses
	if !agg.Healthy() {
		agg.Message = "one or more components are not healthy"
	}
	return agg
}
