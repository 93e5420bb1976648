package commits

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
	"github.com/i474232898/carbon-aware-dev/internal/store"
)

// LatestReading is the read side of the latest carbon reading slot.
type LatestReading interface {
	Get() (carbon.Data, bool)
}

// Tracker classifies commit events against the most recently cached
// carbon reading and accumulates persisted counters. It never fetches;
// it only reads whatever reading the refresh path last cached.
type Tracker struct {
	latest LatestReading
	stats  *store.StatsStore
}

func NewTracker(latest LatestReading, stats *store.StatsStore) *Tracker {
	return &Tracker{latest: latest, stats: stats}
}

// CommitDetected records one commit event. With no cached reading only
// the total is counted; otherwise the reading's index buckets the commit:
// very low and low count as low-carbon and sustainable, moderate counts
// as moderate and sustainable, high and very high count as neither.
func (t *Tracker) CommitDetected() error {
	reading, ok := t.latest.Get()

	return t.stats.Update(func(stats *store.CommitStats) {
		stats.TotalCommits++

		if !ok || reading.Index == "" {
			log.Info().Msg("commit tracked without carbon data; set a location to enable carbon-aware tracking")
			return
		}

		stats.LastCommitTime = time.Now().UTC().Format(time.RFC3339)
		stats.LastCommitCarbon = string(reading.Index)

		switch reading.Index {
		case carbon.IndexVeryLow, carbon.IndexLow:
			stats.LowCarbonCommits++
			stats.SustainableCommits++
			log.Info().Float64("intensity", reading.Intensity).Str("index", string(reading.Index)).Msg("sustainable commit")
		case carbon.IndexModerate:
			stats.ModerateCommits++
			stats.SustainableCommits++
			log.Info().Float64("intensity", reading.Intensity).Str("index", string(reading.Index)).Msg("sustainable commit")
		default:
			log.Warn().Float64("intensity", reading.Intensity).Str("index", string(reading.Index)).
				Msg("high carbon commit; consider committing during low-carbon periods")
		}
	})
}

// Stats returns a snapshot of the persisted aggregate.
func (t *Tracker) Stats() store.CommitStats {
	return t.stats.Stats()
}

// Reset zeroes all counters and the last observed commit.
func (t *Tracker) Reset() error {
	return t.stats.Reset()
}

// SustainabilityRate returns the share of sustainable commits as a
// rounded percentage, 0 when no commits have been tracked.
func SustainabilityRate(stats store.CommitStats) int {
	if stats.TotalCommits == 0 {
		return 0
	}
	return int(math.Round(float64(stats.SustainableCommits) / float64(stats.TotalCommits) * 100))
}
