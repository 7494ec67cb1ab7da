package domain

import "time"

// DefaultUpdateInterval is used when no interval was ever persisted.
const DefaultUpdateInterval = 24 * time.Hour

// SchedulerState is the recurring loop's persisted state.
type SchedulerState struct {
	LastUpdateTime *time.Time
	UpdateInterval time.Duration
}

// Due reports whether an update is overdue at now.
func (s SchedulerState) Due(now time.Time) bool {
	if s.LastUpdateTime == nil {
		return true
	}
	return now.Sub(*s.LastUpdateTime) >= s.UpdateInterval
}
