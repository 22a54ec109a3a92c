package broker

import (
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
)

// Derive computes the advisory daemon status from the stored heartbeat (nil
// when absent) at time now. It has no side effects.
func Derive(hb *models.HeartbeatRecord, now time.Time, freshness time.Duration) models.DerivedStatus {
	if hb == nil {
		return models.DerivedStatus{
			DaemonStatus:       constants.DaemonOffline,
			TimeSinceHeartbeat: constants.NoHeartbeatAge,
		}
	}

	age := hb.Age(now)
	status := constants.DaemonOffline
	if age < freshness {
		switch hb.Mode {
		case constants.ModePaused:
			status = constants.DaemonPaused
		case constants.ModeActive:
			status = constants.DaemonOnline
		}
	}

	return models.DerivedStatus{DaemonStatus: status, TimeSinceHeartbeat: age}
}
