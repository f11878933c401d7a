package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/packsight/packsight/sortutil"
	"github.com/packsight/packsight/telemetry"
)

// DefaultWindow is the trailing-window length (in prior samples) used
// for the local z-score baseline. A fixed trailing window, rather than
// one expanding from session start, keeps detection causal and gives
// the same verdicts whether the series is replayed or streamed.
const DefaultWindow = 32

// Cell-voltage spread calibration bands (mV). A spread must clear both
// the absolute band floor and the band's z-score threshold to flag;
// above alwaysBand the z-score no longer matters.
const (
	ignoreBand  = 80.0  // below this, never an anomaly
	monitorBand = 100.0 // 80-100 needs z > 2.0
	earlyBand   = 200.0 // 100-200 needs z > 2.5
	alwaysBand  = 300.0 // 200-300 needs z > 3.0; above, always
)

// Temperature spread bands (°C), same hybrid shape.
const (
	tempIgnoreBand = 8.0  // below this, never an anomaly
	tempAlwaysBand = 15.0 // above this, always an anomaly
	tempZThreshold = 2.5
)

// CellVoltage is one implicated cell in an anomaly record.
type CellVoltage struct {
	ID         int     `json:"id"`
	Millivolts float64 `json:"mv"`
}

// Anomaly is one detected condition, independent of the coded-fault
// stream. Never mutated after creation; Cells always holds the full
// implicated list (display capping is a presentation concern).
type Anomaly struct {
	Time        time.Time     `json:"time"`
	Description string        `json:"description"`
	Cells       []CellVoltage `json:"cells,omitempty"`
}

// Detector scans a series for cell-voltage and temperature conditions.
type Detector struct {
	window int
}

// NewDetector returns a detector with the given trailing-window length.
// window < 2 falls back to DefaultWindow.
func NewDetector(window int) Detector {
	if window < 2 {
		window = DefaultWindow
	}
	return Detector{window: window}
}

// Scan walks the series in order and returns every anomaly found. The
// baseline for each sample is computed from the trailing window of
// prior samples only, so results are reproducible under streaming.
func (d Detector) Scan(series *telemetry.Series) []Anomaly {
	if series == nil {
		return nil
	}

	var out []Anomaly
	spreads := make([]float64, 0, len(series.Samples))
	tempSpreads := make([]float64, 0, len(series.Samples))

	for i := range series.Samples {
		s := &series.Samples[i]

		if s.CellSpread != nil {
			spread := *s.CellSpread
			if label, flag := ClassifySpread(spread, trailingZ(spreads, d.window, spread)); flag {
				out = append(out, Anomaly{
					Time:        s.Time,
					Description: fmt.Sprintf("%s: cell spread %.0f mV", label, spread),
					Cells:       implicatedCells(s),
				})
			}
			spreads = append(spreads, spread)
		}

		if s.TempSpread != nil {
			spread := *s.TempSpread
			if label, flag := ClassifyTempSpread(spread, trailingZ(tempSpreads, d.window, spread)); flag {
				out = append(out, Anomaly{
					Time:        s.Time,
					Description: fmt.Sprintf("%s: temperature spread %.1f °C", label, spread),
				})
			}
			tempSpreads = append(tempSpreads, spread)
		}
	}
	return out
}

// ClassifySpread applies the hybrid absolute/z-score rule to one cell
// spread value. Pure function over (value, local z-score): the caller
// supplies the baseline, the classifier holds no state. A NaN z-score
// means "no baseline yet" and fails every z threshold; the always band
// still applies.
func ClassifySpread(spread, z float64) (string, bool) {
	switch {
	case spread < ignoreBand:
		return "", false
	case spread > alwaysBand:
		// Large absolute deviations always flag, whatever the local
		// variance happens to be.
		return "severe imbalance", true
	case spread <= monitorBand:
		return "monitor", z > 2.0
	case spread <= earlyBand:
		return "early imbalance", z > 2.5
	default:
		return "degradation", z > 3.0
	}
}

// ClassifyTempSpread is the temperature counterpart of ClassifySpread.
func ClassifyTempSpread(spread, z float64) (string, bool) {
	switch {
	case spread < tempIgnoreBand:
		return "", false
	case spread >= tempAlwaysBand:
		return "temperature runaway", true
	}
	return "temperature imbalance", z > tempZThreshold
}

// trailingZ computes the z-score of v against the last `window` values.
// Returns NaN with no prior values. A constant window saturates the
// score: any deviation from the mean is infinitely surprising.
func trailingZ(values []float64, window int, v float64) float64 {
	if len(values) > window {
		values = values[len(values)-window:]
	}
	if len(values) == 0 {
		return math.NaN()
	}

	var sum float64
	for _, x := range values {
		sum += x
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, x := range values {
		d := x - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(values)))

	if stddev == 0 {
		if v == mean {
			return 0
		}
		return math.Inf(1)
	}
	return (v - mean) / stddev
}

// implicatedCells lists the cells pulling the spread apart: every valid
// cell whose deviation from the sample mean is at least half the
// spread, ordered by deviation (largest first) then id.
func implicatedCells(s *telemetry.Sample) []CellVoltage {
	valid := s.ValidCells()
	if len(valid) == 0 || s.CellSpread == nil || *s.CellSpread == 0 {
		return nil
	}

	var sum float64
	for _, mv := range valid {
		sum += mv
	}
	mean := sum / float64(len(valid))
	threshold := *s.CellSpread / 2

	var out []CellVoltage
	for id, mv := range valid {
		if math.Abs(mv-mean) >= threshold {
			out = append(out, CellVoltage{ID: id, Millivolts: mv})
		}
	}
	sortutil.Stable(out, func(a, b CellVoltage) bool {
		da := math.Abs(a.Millivolts - mean)
		db := math.Abs(b.Millivolts - mean)
		if da != db {
			return da > db
		}
		return a.ID < b.ID
	})
	return out
}
