package bridge

// ConnectionState tracks one endpoint's connection lifecycle. Only the
// owning supervisor writes it; everything else reads.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns the lowercase state name for logs and health snapshots.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
