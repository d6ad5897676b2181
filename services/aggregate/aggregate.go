// Package aggregate maintains running weighted means incrementally. It backs
// both survey-score ingestion (professor averages weighted by respondent
// count) and review submission/editing, which emits the same kind of update
// events. Aggregates are never recomputed from scratch: every observation is
// applied exactly once, and edits reverse the old observation before
// applying the new one.
package aggregate

// Mean is a running weighted mean over Count prior weight units.
type Mean struct {
	Value float64
	Count int64
}

// Apply folds one observation v with weight w into the mean.
func (m Mean) Apply(v float64, w int64) Mean {
	if m.Count+w <= 0 {
		return Mean{}
	}
	return Mean{
		Value: (m.Value*float64(m.Count) + v*float64(w)) / float64(m.Count+w),
		Count: m.Count + w,
	}
}

// Reverse removes a previously applied observation. The division uses the
// count before decrement; reversing an observation that was never applied
// produces garbage, the caller owns that history.
func (m Mean) Reverse(v float64, w int64) Mean {
	if m.Count-w <= 0 {
		return Mean{}
	}
	return Mean{
		Value: (m.Value*float64(m.Count) - v*float64(w)) / float64(m.Count-w),
		Count: m.Count - w,
	}
}

// Replace is the edit flow: reverse the old observation, apply the new one.
func (m Mean) Replace(oldV float64, oldW int64, newV float64, newW int64) Mean {
	return m.Reverse(oldV, oldW).Apply(newV, newW)
}

// ApplyBool treats the mean as an approval ratio over 0/1 observations.
func (m Mean) ApplyBool(v bool, w int64) Mean {
	return m.Apply(boolValue(v), w)
}

func (m Mean) ReverseBool(v bool, w int64) Mean {
	return m.Reverse(boolValue(v), w)
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
