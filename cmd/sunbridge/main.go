// Sunbridge - Huawei SUN2000 to MQTT telemetry bridge
//
// Sunbridge polls a SUN2000 inverter over Modbus TCP and publishes the
// readings to an MQTT broker. It is built to run unattended on a small
// gateway for years: both connections retry forever with backoff, a
// single-instance lock keeps a second copy from fighting for the
// inverter's only Modbus session, and every fault short of lock
// contention is absorbed into a scheduling decision.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/sunbridge/internal/bridge"
	"github.com/nerrad567/sunbridge/internal/history"
	"github.com/nerrad567/sunbridge/internal/infrastructure/config"
	"github.com/nerrad567/sunbridge/internal/infrastructure/database"
	"github.com/nerrad567/sunbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/sunbridge/internal/infrastructure/logging"
	"github.com/nerrad567/sunbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/sunbridge/internal/inverter"
	"github.com/nerrad567/sunbridge/internal/lockfile"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Exit codes. Lock contention gets its own code so a supervisor script
// can tell "second instance" apart from ordinary startup failures and
// stop respawning.
const (
	exitFailure  = 1
	exitLockHeld = 2
)

// Device-side reconnect backoff bounds. The broker side takes its bounds
// from configuration because paho shares them with its auto-reconnect.
const (
	deviceBackoffMin = 1 * time.Second
	deviceBackoffMax = 60 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, lockfile.ErrAlreadyLocked) {
			os.Exit(exitLockHeld)
		}
		os.Exit(exitFailure)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting sunbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Single-instance lock, keyed by inverter target. Fatal if held:
	// two pollers against one inverter is exactly the conflict the
	// engine otherwise only detects heuristically.
	lock, err := lockfile.Acquire(cfg.Lock.Dir, "sunbridge-"+cfg.Inverter.Host)
	if err != nil {
		return fmt.Errorf("acquiring instance lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			log.Error("error releasing lock", "error", releaseErr)
		}
	}()
	log.Info("instance lock acquired", "path", lock.Path())

	// Resolve the register sets, falling back to the defaults when the
	// configured keys are unknown.
	frequentKeys := resolveKeys(log, "frequent", cfg.Polling.FrequentKeys, inverter.DefaultFrequentKeys())
	periodicKeys := resolveKeys(log, "periodic", cfg.Polling.PeriodicKeys, inverter.DefaultPeriodicKeys())

	var recorders []bridge.Recorder

	// Open the local sample archive (optional)
	if cfg.Database.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		archive := history.New(db)
		recorders = append(recorders, archive)
		go pruneLoop(ctx, archive, cfg.Database.GetRetention(), log)
	} else {
		log.Info("sample archive disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		recorders = append(recorders, &influxRecorder{
			client: influxClient,
			device: cfg.Inverter.Host,
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Broker supervisor. Each connect attempt builds a fresh paho client
	// with the retained-offline last-will registered, so an abrupt death
	// at any point is observable on the status topic.
	brokerSup := bridge.NewBrokerSupervisor(
		func() (bridge.BrokerClient, error) {
			client, connectErr := mqtt.Connect(cfg.MQTT)
			if connectErr != nil {
				return nil, connectErr
			}
			client.SetLogger(log)
			client.SetOnConnect(func() {
				log.Info("MQTT reconnected")
			})
			client.SetOnDisconnect(func(err error) {
				log.Warn("MQTT disconnected", "error", err)
			})
			return client, nil
		},
		bridge.NewBackoff(
			time.Duration(cfg.MQTT.Reconnect.InitialDelay)*time.Second,
			time.Duration(cfg.MQTT.Reconnect.MaxDelay)*time.Second,
		),
		log,
	)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := brokerSup.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	// Device supervisor
	deviceSup := bridge.NewDeviceSupervisor(
		func(ctx context.Context) (bridge.DeviceClient, error) {
			client, connectErr := inverter.Connect(ctx, inverter.Config{
				Host:           cfg.Inverter.Host,
				Port:           cfg.Inverter.Port,
				UnitID:         uint8(cfg.Inverter.UnitID),
				ConnectTimeout: cfg.Inverter.GetConnectTimeout(),
				ReadTimeout:    cfg.Inverter.GetReadTimeout(),
			})
			if connectErr != nil {
				return nil, connectErr
			}
			return client, nil
		},
		bridge.NewBackoff(deviceBackoffMin, deviceBackoffMax),
		log,
	)
	defer func() {
		log.Info("disconnecting from inverter")
		if closeErr := deviceSup.Close(); closeErr != nil {
			log.Error("error closing inverter connection", "error", closeErr)
		}
	}()

	poller := bridge.NewPoller(
		bridge.PollerConfig{
			FrequentKeys:       frequentKeys,
			PeriodicKeys:       periodicKeys,
			PeriodicEvery:      cfg.Polling.PeriodicEvery,
			CycleInterval:      cfg.Polling.GetCycleInterval(),
			PerReadDelay:       cfg.Polling.GetPerReadDelay(),
			ReconnectThreshold: cfg.Polling.ReconnectThreshold,
			ConflictCooldown:   cfg.Polling.GetConflictCooldown(),
			QoS:                byte(cfg.MQTT.QoS),
		},
		brokerSup,
		deviceSup,
		bridge.NewChangeDetector(cfg.Polling.Epsilon),
		mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix},
		log,
		recorders...,
	)

	log.Info("initialisation complete, starting poll loop",
		"inverter", fmt.Sprintf("%s:%d", cfg.Inverter.Host, cfg.Inverter.Port),
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topic_prefix", cfg.MQTT.TopicPrefix,
	)

	if runErr := poller.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("poll loop: %w", runErr)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Inverter connection
	// 2. MQTT (publishes retained "offline" before disconnecting)
	// 3. InfluxDB (if enabled)
	// 4. Database (if enabled)
	// 5. Instance lock

	log.Info("sunbridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SUNBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SUNBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// resolveKeys filters a configured register set down to known keys,
// warning about each unknown one. Matches the permissive startup posture:
// a typo in one key should not keep telemetry down. The built-in defaults
// apply only when the set is empty or nothing in it is known.
func resolveKeys(log *logging.Logger, set string, keys, defaults []string) []string {
	if len(keys) == 0 {
		return defaults
	}
	valid := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, err := inverter.Lookup(key); err != nil {
			log.Warn("ignoring unknown register key", "set", set, "key", key)
			continue
		}
		valid = append(valid, key)
	}
	if len(valid) == 0 {
		log.Warn("configured register set has no known keys, using defaults",
			"set", set)
		return defaults
	}
	return valid
}

// pruneLoop trims the sample archive once at startup and then daily.
func pruneLoop(ctx context.Context, archive *history.Archive, retention time.Duration, log *logging.Logger) {
	prune := func() {
		removed, err := archive.Prune(ctx, retention)
		if err != nil {
			log.Warn("archive prune failed", "error", err)
			return
		}
		if removed > 0 {
			log.Info("archive pruned", "removed", removed)
		}
	}

	prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// influxRecorder mirrors numeric published samples into InfluxDB. Status
// text and NaN readings stay out of the time series.
type influxRecorder struct {
	client *influxdb.Client
	device string
}

// Record implements bridge.Recorder.
func (r *influxRecorder) Record(_ context.Context, sample inverter.Sample) error {
	if !sample.Value.Numeric || sample.Value.IsNaN() {
		return nil
	}
	r.client.WriteSample(r.device, sample.Key, sample.Value.Float, sample.At)
	return nil
}
