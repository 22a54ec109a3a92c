package constants

import (
	"math"
	"time"
)

// Mode is the operational mode a daemon reports with each heartbeat.
type Mode string

const (
	// ModeActive means the daemon host is in normal use.
	ModeActive Mode = "active"
	// ModePaused means the daemon host is deliberately idle (locked, asleep), not unreachable.
	ModePaused Mode = "paused"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeActive || m == ModePaused
}

// DaemonStatus is the broker's advisory view of the daemon.
type DaemonStatus string

const (
	DaemonOnline  DaemonStatus = "online"
	DaemonPaused  DaemonStatus = "paused"
	DaemonOffline DaemonStatus = "offline"
)

// NoHeartbeatAge is reported as the heartbeat age when no heartbeat record exists.
const NoHeartbeatAge = time.Duration(math.MaxInt32) * time.Second

// Store keys for the two broker records.
const (
	HeartbeatKey = "failover/heartbeat"
	CommandKey   = "failover/command"
)
