package bridge

import (
	"encoding/json"
	"time"
)

// HealthSnapshot is the per-cycle report published to the health topic.
// It is observational only; no control decision reads it back.
type HealthSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	Cycle         uint64    `json:"cycle"`
	CumulativeOK  uint64    `json:"cumulative_ok"`
	CumulativeErr uint64    `json:"cumulative_fail"`
	CycleOK       int       `json:"cycle_ok"`
	CycleErr      int       `json:"cycle_fail"`
	Conflicts     int       `json:"conflicts"`
	Broker        string    `json:"broker"`
	Device        string    `json:"device"`
	CachedKeys    int       `json:"cached_keys"`
}

// Encode renders the snapshot as the JSON payload for the health topic.
func (h HealthSnapshot) Encode() ([]byte, error) {
	return json.Marshal(h)
}
