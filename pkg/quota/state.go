// Package quota tracks the Soundcharts API call quota reported in the
// x-quota-remaining response header and gates requests before the quota runs
// out. State lives in a Store so several processes sharing one API key can
// share it through Redis.
package quota

import (
	"time"
)

// HeaderRemaining is the response header carrying the remaining call quota.
const HeaderRemaining = "X-Quota-Remaining"

// Redis keys for quota state storage.
const (
	RedisKeyRemaining  = "soundcharts:quota:remaining"
	RedisKeyLastUpdate = "soundcharts:quota:last_update"
)

// RedisStateTTL expires shared quota state that no response has refreshed.
const RedisStateTTL = 24 * time.Hour

// Thresholds for quota decisions.
const (
	// ThresholdCritical blocks all requests when remaining quota falls below this value.
	ThresholdCritical = 10

	// ThresholdWarning applies throttling when remaining quota falls below this value.
	ThresholdWarning = 100

	// ThresholdHealthy indicates normal operation.
	ThresholdHealthy = 1000
)

// State represents the last known quota state.
type State struct {
	// Remaining is the number of API calls left, from the x-quota-remaining header.
	// A negative value means no header has been seen yet.
	Remaining int `json:"remaining"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy or unknown.
	IsHealthy bool `json:"is_healthy"`
}

// UnknownState is the state used before any quota header has been observed.
func UnknownState() *State {
	return &State{Remaining: -1, IsHealthy: true}
}

// Known reports whether the state came from a real response header.
func (s *State) Known() bool {
	return s.Remaining >= 0
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.Known() && s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Known() && s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = !s.Known() || s.Remaining >= ThresholdHealthy
}
