package bridge

import "strings"

// conflictSignatures are error-text fragments that indicate a second client
// is contending for the inverter's single Modbus session. The matching is
// deliberately loose string containment: the fragments come from our own
// transport errors and from OS-level resets, and live here in one place so
// they can be swapped without touching the scheduler.
var conflictSignatures = []string{
	"transaction id mismatch",
	"connection closed mid-request",
	"no response",
	"connection reset by peer",
	"broken pipe",
}

// IsConflict reports whether a read failure looks like session contention.
// Best effort only: the hard guarantee against a second instance is the
// instance lock, not this heuristic.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	for _, sig := range conflictSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}
