package mqtt

// Topic payloads for the retained status topic. These are plain strings,
// not JSON: downstream dashboards bind the topic directly to an
// online/offline indicator.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics builds the bridge's topic names from the configured prefix.
//
// The scheme is flat and stable so Home Assistant templates survive
// upgrades:
//
//	<prefix>/status       retained "online"/"offline" (also the LWT)
//	<prefix>/<register>   string-encoded value, not retained
//	<prefix>/health       JSON health snapshot, not retained
type Topics struct {
	Prefix string
}

// Status returns the retained status topic.
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// Health returns the health snapshot topic.
func (t Topics) Health() string {
	return t.Prefix + "/health"
}

// Measurement returns the topic for a single register value.
func (t Topics) Measurement(key string) string {
	return t.Prefix + "/" + key
}
