// Package liveness holds the decision engine that turns broker status reads
// into a failover decision.
package liveness

import (
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
)

// Classification is the engine's own judgement of one poll.
type Classification string

const (
	FreshActive Classification = "fresh_active"
	FreshPaused Classification = "fresh_paused"
	Stale       Classification = "stale"
)

// Classify judges a poll result against the engine's staleness threshold. A
// failed poll (err != nil) is Stale: the engine cannot prove the daemon is
// alive. The broker's daemon_status is advisory and not consulted.
func Classify(status *models.StatusResponse, err error, staleness time.Duration) Classification {
	if err != nil || status == nil || !status.HasHeartbeat() {
		return Stale
	}

	switch status.DaemonMode {
	case constants.ModePaused:
		// a paused record the broker still holds is deliberate idleness, however old
		return FreshPaused
	case constants.ModeActive:
		if status.HeartbeatAge() < staleness {
			return FreshActive
		}
	}
	return Stale
}
