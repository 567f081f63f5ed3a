package weather

import (
	"fmt"
	"sort"
	"time"
)

// SnowfallDeltas holds new-snow totals derived from a depth series.
// The Insufficient* flags mark windows computed against the oldest
// available sample because the series was shorter than the window.
type SnowfallDeltas struct {
	Snowfall24hIn float64
	Snowfall48hIn float64
	Snowfall7dIn  float64

	Insufficient24h bool
	Insufficient48h bool
	Insufficient7d  bool
}

// Degraded reports whether any window fell back to the oldest sample.
func (d SnowfallDeltas) Degraded() bool {
	return d.Insufficient24h || d.Insufficient48h || d.Insufficient7d
}

type depthPoint struct {
	date  time.Time
	depth float64
}

// reported drops unreported days and sorts the rest most recent first.
func reported(series RawDepthSeries) []depthPoint {
	points := make([]depthPoint, 0, len(series))
	for _, s := range series {
		if s.DepthIn == nil {
			continue
		}
		points = append(points, depthPoint{date: dateOnly(s.Date), depth: *s.DepthIn})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].date.After(points[j].date)
	})
	return points
}

// LatestDepth returns the most recent reported depth, or false if none was reported.
func LatestDepth(series RawDepthSeries) (float64, bool) {
	points := reported(series)
	if len(points) == 0 {
		return 0, false
	}
	return points[0].depth, true
}

// SnowfallSince returns new snow over the last days calendar days:
// max(0, latest - baseline), where baseline is the nearest sample dated at or
// before latest-days. Settling never shows up as negative snowfall. When the
// series does not reach back that far the oldest sample is the baseline and
// the degraded value is returned together with ErrInsufficientHistory.
func SnowfallSince(series RawDepthSeries, days int) (float64, error) {
	return snowfallSince(reported(series), days)
}

func snowfallSince(points []depthPoint, days int) (float64, error) {
	if len(points) == 0 {
		return 0, fmt.Errorf("%w: no reported depth samples", ErrInsufficientHistory)
	}

	target := points[0].date.AddDate(0, 0, -days)
	baseline := -1
	for i := 1; i < len(points); i++ {
		if !points[i].date.After(target) {
			baseline = i
			break
		}
	}

	var err error
	if baseline < 0 {
		baseline = len(points) - 1
		err = fmt.Errorf("%w: wanted %d days, have %d samples", ErrInsufficientHistory, days, len(points))
	}

	return max(0, points[0].depth-points[baseline].depth), err
}

// CalculateSnowfall derives the 24h, 48h and 7d new-snow totals of a depth series.
func CalculateSnowfall(series RawDepthSeries) SnowfallDeltas {
	points := reported(series)

	var d SnowfallDeltas
	var err error

	d.Snowfall24hIn, err = snowfallSince(points, 1)
	d.Insufficient24h = err != nil
	d.Snowfall48hIn, err = snowfallSince(points, 2)
	d.Insufficient48h = err != nil
	d.Snowfall7dIn, err = snowfallSince(points, 7)
	d.Insufficient7d = err != nil

	return d
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
