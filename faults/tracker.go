package faults

import (
	"time"

	"github.com/packsight/packsight/sortutil"
	"github.com/packsight/packsight/telemetry"
)

// RawEvent is one row from the fault-code sheet: a code was set or
// cleared at a point in time.
type RawEvent struct {
	Code int
	Set  bool
	Time time.Time
}

// IntervalStats are min/max/avg statistics over the samples inside a
// closed fault interval. Computed only when the interval closed.
type IntervalStats struct {
	CellMin     float64 `json:"cellMin"`
	CellMax     float64 `json:"cellMax"`
	CellAvg     float64 `json:"cellAvg"`
	TempMin     float64 `json:"tempMin"`
	TempMax     float64 `json:"tempMax"`
	TempAvg     float64 `json:"tempAvg"`
	InsMin      float64 `json:"insMin"`
	InsMax      float64 `json:"insMax"`
	InsAvg      float64 `json:"insAvg"`
	SampleCount int     `json:"sampleCount"`
}

// Event is one reconstructed fault interval. Immutable once the tracker
// returns it.
type Event struct {
	Code     int               `json:"code"`
	Name     string            `json:"name"`
	Severity int               `json:"severity"`
	Start    time.Time         `json:"start"`
	End      *time.Time        `json:"end,omitempty"`
	Ongoing  bool              `json:"ongoing"`
	Duration time.Duration     `json:"duration"`
	Snapshot *telemetry.Sample `json:"snapshot,omitempty"`
	Stats    *IntervalStats    `json:"stats,omitempty"`
}

// Track reconstructs fault intervals from a raw set/clear event stream.
// Codes are tracked independently; intervals for different codes may
// overlap. A clear matches the earliest still-open interval for the
// same code; a clear with no open interval is ignored. Intervals still
// open at series end are finalized as ongoing with no end time and no
// in-duration stats.
func Track(events []RawEvent, series *telemetry.Series) []Event {
	open := map[int][]*Event{} // per code, FIFO
	var done []*Event

	for _, ev := range events {
		if ev.Set {
			e := &Event{
				Code:     ev.Code,
				Name:     CodeName(ev.Code),
				Severity: CodeSeverity(ev.Code),
				Start:    ev.Time,
				Snapshot: nearestSample(series, ev.Time),
			}
			open[ev.Code] = append(open[ev.Code], e)
			continue
		}

		queue := open[ev.Code]
		if len(queue) == 0 {
			continue // UnmatchedFaultClear: ignored, not surfaced
		}
		e := queue[0]
		open[ev.Code] = queue[1:]

		end := ev.Time
		e.End = &end
		e.Duration = end.Sub(e.Start)
		e.Stats = intervalStats(series, e.Start, end)
		done = append(done, e)
	}

	for _, queue := range open {
		for _, e := range queue {
			e.Ongoing = true
			done = append(done, e)
		}
	}

	out := make([]Event, 0, len(done))
	for _, e := range done {
		out = append(out, *e)
	}
	sortutil.Stable(out, func(a, b Event) bool {
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Code < b.Code
	})
	return out
}

// nearestSample finds the sample closest in time to t. The series is
// time-ascending so a linear scan can stop once the gap starts growing.
func nearestSample(series *telemetry.Series, t time.Time) *telemetry.Sample {
	if series == nil || len(series.Samples) == 0 {
		return nil
	}
	best := 0
	bestGap := absDuration(series.Samples[0].Time.Sub(t))
	for i := 1; i < len(series.Samples); i++ {
		gap := absDuration(series.Samples[i].Time.Sub(t))
		if gap > bestGap {
			break
		}
		best, bestGap = i, gap
	}
	return &series.Samples[best]
}

func intervalStats(series *telemetry.Series, start, end time.Time) *IntervalStats {
	if series == nil {
		return nil
	}

	st := &IntervalStats{}
	var cellSum, tempSum, insSum float64
	var cellN, tempN, insN int

	for i := range series.Samples {
		s := &series.Samples[i]
		if s.Time.Before(start) {
			continue
		}
		if s.Time.After(end) {
			break
		}
		st.SampleCount++

		for _, mv := range s.ValidCells() {
			if cellN == 0 || mv < st.CellMin {
				st.CellMin = mv
			}
			if cellN == 0 || mv > st.CellMax {
				st.CellMax = mv
			}
			cellSum += mv
			cellN++
		}
		for _, c := range s.ValidTemps() {
			if tempN == 0 || c < st.TempMin {
				st.TempMin = c
			}
			if tempN == 0 || c > st.TempMax {
				st.TempMax = c
			}
			tempSum += c
			tempN++
		}
		if s.InsulationSystem != nil {
			v := *s.InsulationSystem
			if insN == 0 || v < st.InsMin {
				st.InsMin = v
			}
			if insN == 0 || v > st.InsMax {
				st.InsMax = v
			}
			insSum += v
			insN++
		}
	}

	if st.SampleCount == 0 {
		return nil
	}
	if cellN > 0 {
		st.CellAvg = cellSum / float64(cellN)
	}
	if tempN > 0 {
		st.TempAvg = tempSum / float64(tempN)
	}
	if insN > 0 {
		st.InsAvg = insSum / float64(insN)
	}
	return st
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
