package models

import (
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
)

// DerivedStatus is computed on every status read and never stored.
type DerivedStatus struct {
	DaemonStatus       constants.DaemonStatus
	TimeSinceHeartbeat time.Duration
}

// StatusResponse is the body of GET /api/status. TimeSinceHeartbeat is in
// seconds; it carries constants.NoHeartbeatAge when no heartbeat exists.
type StatusResponse struct {
	DaemonStatus        constants.DaemonStatus `json:"daemon_status"`
	DaemonOnline        bool                   `json:"daemon_online"`
	DaemonLastHeartbeat *time.Time             `json:"daemon_last_heartbeat"`
	TimeSinceHeartbeat  float64                `json:"time_since_heartbeat"`
	HotspotEnabled      bool                   `json:"hotspot_enabled"`
	Timestamp           time.Time              `json:"timestamp"`
	MacAcknowledged     bool                   `json:"mac_acknowledged"`

	DaemonMode      constants.Mode   `json:"daemon_mode,omitempty"`
	DaemonSourceID  string           `json:"daemon_source_id,omitempty"`
	CommandAction   constants.Action `json:"command_action,omitempty"`
	CommandIssuedAt *time.Time       `json:"command_issued_at,omitempty"`
}

// HeartbeatAge converts the wire age back into a duration.
func (s StatusResponse) HeartbeatAge() time.Duration {
	return time.Duration(s.TimeSinceHeartbeat * float64(time.Second))
}

// HasHeartbeat reports whether the broker holds a live heartbeat record.
func (s StatusResponse) HasHeartbeat() bool {
	return s.DaemonLastHeartbeat != nil
}

// PendingCommand reports an issued command the backup device has not acknowledged yet.
func (s StatusResponse) PendingCommand() (constants.Action, bool) {
	if s.CommandAction == "" || s.MacAcknowledged {
		return "", false
	}
	return s.CommandAction, true
}
