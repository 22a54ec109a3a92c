package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/pkg/file"
)

// Config represents the structure of the configuration file. Every role reads
// the same file and uses its own sections.
type Config struct {
	Broker struct {
		ListenAddr          string        `yaml:"listen_addr"`           // Address the HTTP API binds to
		Secret              string        `yaml:"secret"`                // Shared secret in clear
		SecretBcrypt        string        `yaml:"secret_bcrypt"`         // bcrypt hash of the shared secret, preferred over secret
		FreshnessWindow     time.Duration `yaml:"freshness_window"`      // Heartbeat age below which status reads online or paused
		Retention           time.Duration `yaml:"retention"`             // Records older than this are treated as absent
		SweepInterval       time.Duration `yaml:"sweep_interval"`        // How often expired records are reclaimed
		MinDaemonVersion    string        `yaml:"min_daemon_version"`    // Reject heartbeats from older daemons
		RequireStatusSecret bool          `yaml:"require_status_secret"` // Require the secret on status reads

		Store struct {
			Backend    string        `yaml:"backend"`     // memory, badger or etcd
			DataDir    string        `yaml:"data_dir"`    // badger directory, empty for in-memory badger
			GCInterval time.Duration `yaml:"gc_interval"` // badger value log GC interval

			Etcd struct {
				Endpoints   []string      `yaml:"endpoints"`    // etcd cluster endpoints
				Prefix      string        `yaml:"prefix"`       // key prefix for the broker's records
				DialTimeout time.Duration `yaml:"dial_timeout"` // connection timeout
			} `yaml:"etcd"`
		} `yaml:"store"`
	} `yaml:"broker"`

	Daemon struct {
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Interval between heartbeats
		IdentityFile      string        `yaml:"identity_file"`      // Path to the persisted source identity
		PauseFlagFile     string        `yaml:"pause_flag_file"`    // Heartbeats are paused while this file exists
		IdleCommand       string        `yaml:"idle_command"`       // Optional check, exit status 0 means idle

		Connectivity struct {
			Enabled           bool          `yaml:"enabled"`               // Enable/disable the primary link watch
			CheckInterval     time.Duration `yaml:"check_interval"`        // Interval between probes
			FailureThreshold  int           `yaml:"failure_threshold"`     // Consecutive failures before requesting the backup link
			RecoveryThreshold int           `yaml:"recovery_threshold"`    // Consecutive successes before releasing it
			ProbeAddress      string        `yaml:"probe_address"`         // host:port dialled to prove reachability
			ProbeTimeout      time.Duration `yaml:"probe_timeout"`         // Timeout for one probe
			JoinCommand       string        `yaml:"join_command"`          // Optional command that joins the backup link
			PrimaryInterface  string        `yaml:"primary_interface"`     // Probes are sent from this interface's address
			PrimaryCheck      string        `yaml:"primary_check_command"` // Optional check, exit status 0 means on the primary network
		} `yaml:"connectivity"`
	} `yaml:"daemon"`

	// Worst-case detection latency is offline_threshold x poll_interval.
	Monitor struct {
		PollInterval       time.Duration `yaml:"poll_interval"`       // Interval between status reads
		StalenessThreshold time.Duration `yaml:"staleness_threshold"` // Heartbeat age the engine still accepts as alive
		OfflineThreshold   int           `yaml:"offline_threshold"`   // Consecutive stale polls before failover
		StateFile          string        `yaml:"state_file"`          // Persisted engine state, empty to disable

		Actuator struct {
			EnableCommand    string        `yaml:"enable_command"`     // Command that enables the backup link
			DisableCommand   string        `yaml:"disable_command"`    // Command that disables it
			MaxExecutionTime time.Duration `yaml:"max_execution_time"` // Limit for one command
			OutputSizeLimit  int           `yaml:"output_size_limit"`  // Maximum captured output in bytes
			DryRun           bool          `yaml:"dry_run"`            // Log instead of running commands
		} `yaml:"actuator"`
	} `yaml:"monitor"`

	Client struct {
		BrokerURL string        `yaml:"broker_url"` // Base URL of the broker
		Secret    string        `yaml:"secret"`     // Shared secret sent with every request
		Timeout   time.Duration `yaml:"timeout"`    // Per-request timeout
	} `yaml:"client"`

	Logging struct {
		Level  string `yaml:"level"`  // debug, info, warn or error
		Format string `yaml:"format"` // json or console
		Dir    string `yaml:"dir"`    // Also write <role>.log here when set
	} `yaml:"logging"`

	Notifications struct {
		Timeout time.Duration `yaml:"timeout"` // Limit for delivering one notification

		MQTT struct {
			Broker        string `yaml:"broker"`         // MQTT broker address, empty disables MQTT notifications
			ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
			CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate
			Username      string `yaml:"username"`
			Password      string `yaml:"password"`
			Topic         string `yaml:"topic"` // Topic events are published to
			QOS           int    `yaml:"qos"`   // MQTT QoS level for events
		} `yaml:"mqtt"`
	} `yaml:"notifications"`
}

var (
	storeBackends = toSet("memory", "badger", "etcd")
	logFormats    = toSet("json", "console")
)

// LoadConfig loads the YAML configuration from the specified file and fills
// in defaults for anything left unset.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	return &config, nil
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	var config Config
	config.ApplyDefaults()
	return &config
}

// ApplyDefaults sets the reference values on zero fields.
func (c *Config) ApplyDefaults() {
	setDuration(&c.Broker.FreshnessWindow, constants.DefaultFreshnessWindow)
	setDuration(&c.Broker.Retention, constants.DefaultRetention)
	setDuration(&c.Broker.SweepInterval, constants.DefaultSweepInterval)
	setDuration(&c.Broker.Store.GCInterval, 10*time.Minute)
	setDuration(&c.Broker.Store.Etcd.DialTimeout, 5*time.Second)
	setString(&c.Broker.ListenAddr, ":8080")
	setString(&c.Broker.Store.Backend, "memory")
	setString(&c.Broker.Store.Etcd.Prefix, "/failover/")

	setDuration(&c.Daemon.HeartbeatInterval, constants.DefaultHeartbeatInterval)
	setString(&c.Daemon.IdentityFile, "/var/lib/failover/identity.json")
	setString(&c.Daemon.PauseFlagFile, "/var/lib/failover/paused")
	setDuration(&c.Daemon.Connectivity.CheckInterval, constants.DefaultCheckInterval)
	setInt(&c.Daemon.Connectivity.FailureThreshold, constants.DefaultFailureThreshold)
	setInt(&c.Daemon.Connectivity.RecoveryThreshold, constants.DefaultRecoveryThreshold)
	setString(&c.Daemon.Connectivity.ProbeAddress, constants.DefaultProbeAddress)
	setDuration(&c.Daemon.Connectivity.ProbeTimeout, constants.DefaultProbeTimeout)

	setDuration(&c.Monitor.PollInterval, constants.DefaultPollInterval)
	setDuration(&c.Monitor.StalenessThreshold, constants.DefaultStalenessThreshold)
	setInt(&c.Monitor.OfflineThreshold, constants.DefaultOfflineThreshold)
	setDuration(&c.Monitor.Actuator.MaxExecutionTime, constants.DefaultMaxExecutionTime*time.Second)
	setInt(&c.Monitor.Actuator.OutputSizeLimit, constants.DefaultOutputSizeLimit)

	setString(&c.Client.BrokerURL, "http://127.0.0.1:8080")
	setDuration(&c.Client.Timeout, constants.DefaultRequestTimeout)

	setString(&c.Logging.Level, "info")
	setString(&c.Logging.Format, "json")

	setDuration(&c.Notifications.Timeout, 10*time.Second)
	setString(&c.Notifications.MQTT.ClientID, "link-failover")
	setString(&c.Notifications.MQTT.Topic, "failover/events")
}

// Validate checks the configuration. Combinations that work but defeat the
// protocol's timing assumptions come back as warnings.
func (c *Config) Validate() (warnings []string, err error) {
	var errs []error

	if _, ok := storeBackends[c.Broker.Store.Backend]; !ok {
		errs = append(errs, fmt.Errorf("broker.store.backend: unknown backend %q", c.Broker.Store.Backend))
	}
	if c.Broker.Store.Backend == "etcd" && len(c.Broker.Store.Etcd.Endpoints) == 0 {
		errs = append(errs, errors.New("broker.store.etcd.endpoints: required for the etcd backend"))
	}
	if _, ok := logFormats[c.Logging.Format]; !ok {
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if c.Monitor.OfflineThreshold < 1 {
		errs = append(errs, errors.New("monitor.offline_threshold: must be at least 1"))
	}
	if conn := c.Daemon.Connectivity; conn.Enabled && conn.JoinCommand != "" && conn.PrimaryInterface == "" && conn.PrimaryCheck == "" {
		errs = append(errs, errors.New("daemon.connectivity.join_command: requires primary_interface or primary_check_command, otherwise the joined backup link reads as a recovered primary link"))
	}
	if c.Broker.Retention < c.Broker.FreshnessWindow {
		errs = append(errs, errors.New("broker.retention: must not be shorter than broker.freshness_window"))
	}

	if c.Monitor.StalenessThreshold > c.Broker.FreshnessWindow {
		warnings = append(warnings, fmt.Sprintf(
			"monitor.staleness_threshold (%s) exceeds broker.freshness_window (%s); the broker's advisory status will read offline while the monitor still accepts the daemon",
			c.Monitor.StalenessThreshold, c.Broker.FreshnessWindow))
	}
	if c.Monitor.StalenessThreshold <= c.Daemon.HeartbeatInterval {
		warnings = append(warnings, fmt.Sprintf(
			"monitor.staleness_threshold (%s) is not above daemon.heartbeat_interval (%s); every heartbeat gap reads as stale",
			c.Monitor.StalenessThreshold, c.Daemon.HeartbeatInterval))
	}
	if c.Monitor.Actuator.EnableCommand == "" && !c.Monitor.Actuator.DryRun {
		warnings = append(warnings, "monitor.actuator.enable_command is empty; failover cannot switch the backup link")
	}

	return warnings, errors.Join(errs...)
}

// BrokerSecretConfigured reports whether the broker has any secret to check against.
func (c *Config) BrokerSecretConfigured() bool {
	return c.Broker.Secret != "" || c.Broker.SecretBcrypt != ""
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

func setInt(i *int, def int) {
	if *i <= 0 {
		*i = def
	}
}

func setString(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func toSet[T comparable](items ...T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
