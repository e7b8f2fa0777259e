package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sunbridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connection attempt. The broker
	// supervisor retries failed attempts with backoff; this only caps how
	// long one attempt may hang on an unresponsive network.
	defaultConnectTimeout = 30 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from sunbridge config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials
//   - Auto-reconnect with exponential backoff after an established
//     connection drops; the initial connect is NOT retried by paho, the
//     broker supervisor owns that loop and its backoff state
//   - Last Will and Testament on the retained status topic
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - the bridge holds no subscriptions worth resuming.
	opts.SetCleanSession(true)

	// After a successful connect, let paho's network thread heal dropped
	// connections on its own. Initial connect failures return to the
	// caller instead (ConnectRetry false).
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureLWT registers the Last Will and Testament.
//
// The broker publishes the will if the bridge dies without a clean
// disconnect (crash, power loss, network partition), so subscribers see
// "offline" on the retained status topic even when the process never got
// the chance to say goodbye. Registered before every connect attempt.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics) {
	opts.SetWill(topics.Status(), StatusOffline, 1, true)
}
