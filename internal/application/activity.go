package application

import (
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
)

// ActivityTier classifies a project by how recently it was pinged.
type ActivityTier int

const (
	// TierHot indicates a ping within the last hour.
	TierHot ActivityTier = iota
	// TierActive indicates a ping within the last day.
	TierActive
	// TierWarm indicates a ping within the last 7 days.
	TierWarm
	// TierStale indicates no ping for 7+ days, or never.
	TierStale
)

// String returns a human-readable name for the activity tier.
func (t ActivityTier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierActive:
		return "active"
	case TierWarm:
		return "warm"
	case TierStale:
		return "stale"
	default:
		return "unknown"
	}
}

// ClassifyActivity determines the activity tier from the time elapsed since
// lastPing. A zero-value time is treated as TierStale.
func ClassifyActivity(lastPing, now time.Time) ActivityTier {
	if lastPing.IsZero() {
		return TierStale
	}

	elapsed := now.Sub(lastPing)

	switch {
	case elapsed < 1*time.Hour:
		return TierHot
	case elapsed < 24*time.Hour:
		return TierActive
	case elapsed < 7*24*time.Hour:
		return TierWarm
	default:
		return TierStale
	}
}

// freshestPing finds the most recent LastPingAt across all projects.
// Returns the zero time if the slice is empty.
func freshestPing(projects []model.Project) time.Time {
	var newest time.Time
	for _, p := range projects {
		if p.LastPingAt.After(newest) {
			newest = p.LastPingAt
		}
	}
	return newest
}
