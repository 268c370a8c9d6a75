package sync

import "time"

const DefaultTTLHorizon = 6 * time.Hour

// TTL решает, устарел ли кэш
type TTL struct {
	Horizon time.Duration
	Now     func() time.Time
}

func NewTTL(horizon time.Duration) TTL {
	if horizon <= 0 {
		horizon = DefaultTTLHorizon
	}
	return TTL{Horizon: horizon, Now: time.Now}
}

func (t TTL) IsExpired(lastSyncedAt *time.Time) bool {
	if lastSyncedAt == nil {
		return true
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return now().Sub(*lastSyncedAt) >= t.Horizon
}
