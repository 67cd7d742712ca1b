// Package poll drives a background research interaction to completion,
// choosing poll intervals from the durations of past runs when enough
// history exists and from a fixed elapsed-time curve otherwise.
package poll

import (
	"math"
	"sort"
	"time"
)

// Interval bounds applied to every statistical schedule decision.
const (
	minInterval = 2 * time.Second
	maxInterval = 120 * time.Second
)

// minHistorySamples is how many matching past runs the statistical schedule
// needs before it beats the fixed curve.
const minHistorySamples = 3

// Sample is one prior completed run considered for scheduling.
type Sample struct {
	DurationSeconds int64
	Grounded        bool
}

// Strategy selects the delay before the next poll. A strategy is chosen once
// per session and never re-evaluated mid-run.
type Strategy interface {
	Interval(elapsed time.Duration) time.Duration
	Adaptive() bool
}

// NewStrategy picks the session schedule. The statistical schedule applies
// when adaptive polling is enabled and at least minHistorySamples past runs
// match the grounded cohort; everything else gets the fixed curve.
func NewStrategy(history []Sample, grounded, adaptive bool) Strategy {
	if !adaptive {
		return fixedStrategy{}
	}
	durations := make([]float64, 0, len(history))
	for _, s := range history {
		// Zero is a real duration: sub-second runs round down to it.
		if s.Grounded == grounded && s.DurationSeconds >= 0 {
			durations = append(durations, float64(s.DurationSeconds))
		}
	}
	if len(durations) < minHistorySamples {
		return fixedStrategy{}
	}
	sort.Float64s(durations)
	return statStrategy{
		min: durations[0],
		p25: Percentile(durations, 25),
		p75: Percentile(durations, 75),
		max: durations[len(durations)-1],
	}
}

// FixedInterval is the schedule for sessions with no usable history: fast
// early polls that settle down as the run drags on.
func FixedInterval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < 30*time.Second:
		return 5 * time.Second
	case elapsed < 120*time.Second:
		return 10 * time.Second
	case elapsed < 600*time.Second:
		return 30 * time.Second
	default:
		return 60 * time.Second
	}
}

// Percentile computes the p-th percentile (0-100) of ascending values using
// linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	k := float64(len(sorted)-1) * p / 100
	f := math.Floor(k)
	c := int(f) + 1
	if c >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[int(f)] + (k-f)*(sorted[c]-sorted[int(f)])
}

type fixedStrategy struct{}

func (fixedStrategy) Interval(elapsed time.Duration) time.Duration {
	return FixedInterval(elapsed)
}

func (fixedStrategy) Adaptive() bool { return false }

// statStrategy polls hardest inside the p25-p75 window where past runs most
// often finished, and backs off on both sides of it.
type statStrategy struct {
	min, p25, p75, max float64 // seconds
}

func (s statStrategy) Adaptive() bool { return true }

func (s statStrategy) Interval(elapsed time.Duration) time.Duration {
	sec := elapsed.Seconds()
	var interval float64
	switch {
	case sec < s.min:
		// nothing has ever finished this fast
		interval = 30
	case sec < s.p25:
		interval = 15
	case sec <= s.p75:
		// the likely completion window
		interval = 5
	case sec <= s.max:
		interval = 15
	case sec <= s.max*1.5:
		interval = 30
	default:
		interval = 60
	}
	return clampInterval(time.Duration(interval * float64(time.Second)))
}

func clampInterval(d time.Duration) time.Duration {
	if d < minInterval {
		return minInterval
	}
	if d > maxInterval {
		return maxInterval
	}
	return d
}
