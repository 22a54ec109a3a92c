package constants

import "time"

// Reference timings. The engine's staleness threshold must stay at or below the
// broker's freshness window so the advisory status and the local judgement agree.
const (
	DefaultHeartbeatInterval  = 2 * time.Second
	DefaultFreshnessWindow    = 15 * time.Second
	DefaultStalenessThreshold = 10 * time.Second
	DefaultPollInterval       = 5 * time.Second
	DefaultOfflineThreshold   = 2
	DefaultRequestTimeout     = 10 * time.Second
	DefaultRetention          = 600 * time.Second
	DefaultSweepInterval      = 10 * time.Minute

	DefaultCheckInterval     = 30 * time.Second
	DefaultFailureThreshold  = 2
	DefaultRecoveryThreshold = 3
	DefaultProbeAddress      = "8.8.8.8:53"
	DefaultProbeTimeout      = 5 * time.Second
)

// SecretHeader carries the shared secret on requests without a body.
const SecretHeader = "X-Failover-Secret"
