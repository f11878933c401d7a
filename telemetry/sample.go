package telemetry

import "time"

// Validity bounds. Readings outside these are sensor error values: kept
// on the sample for inspection, excluded from every aggregate.
const (
	MinValidCellMillivolts = 1000.0
	MaxValidCellMillivolts = 5000.0
	MinValidTempCelsius    = -40.0 // exclusive
	MaxValidTempCelsius    = 150.0 // exclusive
)

// RelayState is the reported state of a relay channel.
type RelayState string

const (
	RelayOn       RelayState = "ON"
	RelayOff      RelayState = "OFF"
	RelaySticking RelayState = "STICKING"
)

// BalanceState is the per-cell balancing circuit state.
type BalanceState string

const (
	BalanceIdle   BalanceState = "IDLE"
	BalanceActive BalanceState = "ACTIVE"
)

// CellReading identifies one cell voltage, used for derived extremes.
type CellReading struct {
	ID         int     `json:"id"`
	Millivolts float64 `json:"mv"`
}

// TempReading identifies one temperature sensor value.
type TempReading struct {
	ID      int     `json:"id"`
	Celsius float64 `json:"c"`
}

// Sample is one time-stamped, normalized telemetry reading. Samples are
// immutable once built; the series owns them exclusively. Optional
// scalar fields are nil when the source row had no parseable value.
type Sample struct {
	Time    time.Time `json:"time"`
	DateKey string    `json:"date"` // YYYY-MM-DD, derived once

	PackVoltage *float64 `json:"packVoltage,omitempty"`
	Current     *float64 `json:"current,omitempty"`
	SOC         *float64 `json:"soc,omitempty"`
	SOH         *float64 `json:"soh,omitempty"`

	// Raw per-channel readings, including out-of-range values.
	Cells map[int]float64 `json:"cells,omitempty"` // mV
	Temps map[int]float64 `json:"temps,omitempty"` // °C

	InsulationSystem   *float64 `json:"insulationSystem,omitempty"`
	InsulationPositive *float64 `json:"insulationPositive,omitempty"`
	InsulationNegative *float64 `json:"insulationNegative,omitempty"`

	Relays    map[int]RelayState   `json:"relays,omitempty"`
	Inputs    map[int]bool         `json:"inputs,omitempty"`
	Balancing map[int]BalanceState `json:"balancing,omitempty"`

	ChargedEnergy    *float64 `json:"chargedEnergy,omitempty"`
	DischargedEnergy *float64 `json:"dischargedEnergy,omitempty"`

	// Derived once at normalization, over valid readings only.
	MaxCell    *CellReading `json:"maxCell,omitempty"`
	MinCell    *CellReading `json:"minCell,omitempty"`
	CellSpread *float64     `json:"cellSpread,omitempty"`
	MaxTemp    *TempReading `json:"maxTemp,omitempty"`
	MinTemp    *TempReading `json:"minTemp,omitempty"`
	TempSpread *float64     `json:"tempSpread,omitempty"`
}

// CellValid reports whether a cell voltage is inside the acceptance range.
func CellValid(mv float64) bool {
	return mv >= MinValidCellMillivolts && mv <= MaxValidCellMillivolts
}

// TempValid reports whether a temperature is inside the acceptance range.
func TempValid(c float64) bool {
	return c > MinValidTempCelsius && c < MaxValidTempCelsius
}

// ValidCells returns the sample's in-range cell voltages keyed by cell id.
func (s *Sample) ValidCells() map[int]float64 {
	out := make(map[int]float64, len(s.Cells))
	for id, mv := range s.Cells {
		if CellValid(mv) {
			out[id] = mv
		}
	}
	return out
}

// ValidTemps returns the sample's in-range temperatures keyed by sensor id.
func (s *Sample) ValidTemps() map[int]float64 {
	out := make(map[int]float64, len(s.Temps))
	for id, c := range s.Temps {
		if TempValid(c) {
			out[id] = c
		}
	}
	return out
}
