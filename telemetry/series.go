package telemetry

import "github.com/packsight/packsight/sortutil"

// CellRange is the observed cell-index range across a whole series.
// Count is the number of distinct indices seen, which can be smaller
// than Max-Min+1 when channels are absent from the export.
type CellRange struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Count int `json:"count"`
}

// Series is an ordered, time-ascending sequence of samples. Insertion
// order is temporal order; a series is never reordered after
// construction.
type Series struct {
	Samples []Sample `json:"samples"`

	// Dates are the distinct date keys in deterministic ascending
	// order. ByDate holds sample indices per date key.
	Dates  []string         `json:"dates"`
	ByDate map[string][]int `json:"-"`

	CellRange CellRange `json:"cellRange"`
}

// BuildSeries assembles normalized samples into a series, preserving
// arrival order. The cell-index range is the union of cell channels
// observed across every sample, not just the first one: later samples
// may introduce channels the first row lacked.
func BuildSeries(samples []Sample) *Series {
	s := &Series{
		Samples: samples,
		ByDate:  map[string][]int{},
	}

	seen := map[int]bool{}
	for i := range samples {
		sm := &samples[i]
		if sm.DateKey != "" {
			if _, ok := s.ByDate[sm.DateKey]; !ok {
				s.Dates = append(s.Dates, sm.DateKey)
			}
			s.ByDate[sm.DateKey] = append(s.ByDate[sm.DateKey], i)
		}
		for id := range sm.Cells {
			seen[id] = true
		}
	}

	sortutil.Stable(s.Dates, func(a, b string) bool { return a < b })

	if len(seen) > 0 {
		first := true
		for id := range seen {
			if first {
				s.CellRange.Min, s.CellRange.Max = id, id
				first = false
				continue
			}
			if id < s.CellRange.Min {
				s.CellRange.Min = id
			}
			if id > s.CellRange.Max {
				s.CellRange.Max = id
			}
		}
		s.CellRange.Count = len(seen)
	}

	return s
}

// SamplesFor returns the samples recorded on the given date key, in
// arrival order. Nil when the date is not in the series.
func (s *Series) SamplesFor(dateKey string) []Sample {
	idx, ok := s.ByDate[dateKey]
	if !ok {
		return nil
	}
	out := make([]Sample, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Samples[i])
	}
	return out
}
