package weather

import "time"

// ValueAt returns the value whose [Start, Start+Duration) window contains now.
// If no window matches it falls back to the first value; an empty series
// yields nil.
func ValueAt(values []GridValue, now time.Time) *float64 {
	if len(values) == 0 {
		return nil
	}
	for _, v := range values {
		end := v.Start.Add(v.Duration)
		if !now.Before(v.Start) && now.Before(end) {
			return v.Value
		}
	}
	return values[0].Value
}
