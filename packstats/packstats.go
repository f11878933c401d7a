package packstats

import (
	"time"

	"github.com/packsight/packsight/anomaly"
	"github.com/packsight/packsight/faults"
	"github.com/packsight/packsight/telemetry"
)

// Range is a min/max/avg triple over the valid values of one quantity.
// A nil *Range on the summary means no valid value was observed.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Summary is the session-level statistics record for a sample subset
// (typically one selected date, or the whole series).
type Summary struct {
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Duration    time.Duration `json:"duration"`
	SampleCount int           `json:"sampleCount"`
	CellCount   int           `json:"cellCount"`

	// Distinct cells seen balancing at least once.
	BalancingCells int `json:"balancingCells"`

	ChargedEnergy    *float64 `json:"chargedEnergy,omitempty"`
	DischargedEnergy *float64 `json:"dischargedEnergy,omitempty"`
	// Round-trip efficiency, discharged/charged x 100. Nil when charged
	// energy is zero or absent.
	Efficiency *float64 `json:"efficiency,omitempty"`

	PackVoltage *Range `json:"packVoltage,omitempty"`
	Current     *Range `json:"current,omitempty"`
	CellVoltage *Range `json:"cellVoltage,omitempty"`
	Temperature *Range `json:"temperature,omitempty"`
	SOC         *Range `json:"soc,omitempty"`
	SOH         *Range `json:"soh,omitempty"`
	Insulation  *Range `json:"insulation,omitempty"`

	FaultCount   int `json:"faultCount"`
	AnomalyCount int `json:"anomalyCount"`
}

// acc builds a Range incrementally without materializing value slices,
// keeping Summarize O(len(samples)).
type acc struct {
	r   Range
	sum float64
	n   int
}

func (a *acc) add(v float64) {
	if a.n == 0 {
		a.r.Min, a.r.Max = v, v
	} else {
		if v < a.r.Min {
			a.r.Min = v
		}
		if v > a.r.Max {
			a.r.Max = v
		}
	}
	a.sum += v
	a.n++
}

func (a *acc) addOpt(v *float64) {
	if v != nil {
		a.add(*v)
	}
}

func (a *acc) result() *Range {
	if a.n == 0 {
		return nil
	}
	a.r.Avg = a.sum / float64(a.n)
	r := a.r
	return &r
}

// Summarize computes the summary over an arbitrary sample subset. Pure:
// it depends only on its arguments, never on the unfiltered series.
// Returns nil for an empty subset so callers never see ranges computed
// over nothing.
func Summarize(samples []telemetry.Sample, faultEvents []faults.Event, anomalies []anomaly.Anomaly) *Summary {
	if len(samples) == 0 {
		return nil
	}

	sm := &Summary{
		Start:       samples[0].Time,
		End:         samples[len(samples)-1].Time,
		SampleCount: len(samples),
	}
	sm.Duration = sm.End.Sub(sm.Start)

	var pack, current, cell, temp, soc, soh, ins acc
	cellsSeen := map[int]bool{}
	balancing := map[int]bool{}
	var firstCharged, lastCharged, firstDischarged, lastDischarged *float64

	for i := range samples {
		s := &samples[i]
		pack.addOpt(s.PackVoltage)
		current.addOpt(s.Current)
		soc.addOpt(s.SOC)
		soh.addOpt(s.SOH)
		ins.addOpt(s.InsulationSystem)

		for id, mv := range s.Cells {
			cellsSeen[id] = true
			if telemetry.CellValid(mv) {
				cell.add(mv)
			}
		}
		for _, c := range s.Temps {
			if telemetry.TempValid(c) {
				temp.add(c)
			}
		}
		for id, st := range s.Balancing {
			if st == telemetry.BalanceActive {
				balancing[id] = true
			}
		}

		if s.ChargedEnergy != nil {
			if firstCharged == nil {
				firstCharged = s.ChargedEnergy
			}
			lastCharged = s.ChargedEnergy
		}
		if s.DischargedEnergy != nil {
			if firstDischarged == nil {
				firstDischarged = s.DischargedEnergy
			}
			lastDischarged = s.DischargedEnergy
		}
	}

	sm.CellCount = len(cellsSeen)
	sm.BalancingCells = len(balancing)
	sm.PackVoltage = pack.result()
	sm.Current = current.result()
	sm.CellVoltage = cell.result()
	sm.Temperature = temp.result()
	sm.SOC = soc.result()
	sm.SOH = soh.result()
	sm.Insulation = ins.result()

	// Energy accumulated over the subset: the counters are cumulative,
	// so the subset's totals are last minus first.
	if firstCharged != nil && lastCharged != nil {
		charged := *lastCharged - *firstCharged
		sm.ChargedEnergy = &charged
	}
	if firstDischarged != nil && lastDischarged != nil {
		discharged := *lastDischarged - *firstDischarged
		sm.DischargedEnergy = &discharged
	}
	if sm.ChargedEnergy != nil && sm.DischargedEnergy != nil && *sm.ChargedEnergy > 0 {
		eff := *sm.DischargedEnergy / *sm.ChargedEnergy * 100
		sm.Efficiency = &eff
	}

	// Fault and anomaly counts restricted to the subset's date range.
	startKey := samples[0].DateKey
	endKey := samples[len(samples)-1].DateKey
	for _, f := range faultEvents {
		if key := f.Start.Format("2006-01-02"); key >= startKey && key <= endKey {
			sm.FaultCount++
		}
	}
	for _, a := range anomalies {
		if key := a.Time.Format("2006-01-02"); key >= startKey && key <= endKey {
			sm.AnomalyCount++
		}
	}

	return sm
}
