package run

import (
	"fmt"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

type LatencySummary struct {
	Count  int
	Mean   float64
	Median float64
	P95    float64
	Max    float64
}

func (s LatencySummary) String() string {
	return fmt.Sprintf("%d updates, mean %.0fms, median %.0fms, p95 %.0fms, max %.0fms", s.Count, s.Mean, s.Median, s.P95, s.Max)
}

// LatencyTracker records the gaps between successive updates in milliseconds.
type LatencyTracker struct {
	mutex   sync.Mutex
	last    time.Time
	samples []float64
}

func (t *LatencyTracker) Observe(at time.Time) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.last.IsZero() {
		t.samples = append(t.samples, float64(at.Sub(t.last).Milliseconds()))
	}

	t.last = at
}

func (t *LatencyTracker) Summary() (LatencySummary, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	data := stats.Float64Data(t.samples)

	mean, err := stats.Mean(data)
	if err != nil {
		return LatencySummary{}, fmt.Errorf("LatencyTracker.Summary: mean: %w", err)
	}

	median, err := stats.Median(data)
	if err != nil {
		return LatencySummary{}, fmt.Errorf("LatencyTracker.Summary: median: %w", err)
	}

	p95, err := stats.Percentile(data, 95)
	if err != nil {
		return LatencySummary{}, fmt.Errorf("LatencyTracker.Summary: percentile: %w", err)
	}

	max, err := stats.Max(data)
	if err != nil {
		return LatencySummary{}, fmt.Errorf("LatencyTracker.Summary: max: %w", err)
	}

	return LatencySummary{
		Count:  len(t.samples),
		Mean:   mean,
		Median: median,
		P95:    p95,
		Max:    max,
	}, nil
}
