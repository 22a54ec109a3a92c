package models

import (
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
)

// HeartbeatRecord is the last heartbeat the broker accepted. ReceivedAt is
// always the broker's clock.
type HeartbeatRecord struct {
	ReceivedAt time.Time      `json:"received_at"`
	Mode       constants.Mode `json:"mode"`
	SourceID   string         `json:"source_id,omitempty"`
	Version    string         `json:"version,omitempty"`
}

// Age returns how long ago the record was received, never negative.
func (h HeartbeatRecord) Age(now time.Time) time.Duration {
	if age := now.Sub(h.ReceivedAt); age > 0 {
		return age
	}
	return 0
}

// HeartbeatRequest is the body of POST /api/heartbeat.
type HeartbeatRequest struct {
	Secret   string         `json:"secret"`
	Status   constants.Mode `json:"status"`
	SourceID string         `json:"source_id,omitempty"`
	Version  string         `json:"version,omitempty"`
}

// HeartbeatResponse acknowledges an accepted heartbeat.
type HeartbeatResponse struct {
	Success   bool           `json:"success"`
	Timestamp time.Time      `json:"timestamp"`
	Status    constants.Mode `json:"status"`
}
