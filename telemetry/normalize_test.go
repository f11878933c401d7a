package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScalars(t *testing.T) {
	s := Normalize(map[string]string{
		"Time":         "2025-03-14 10:20:30",
		"Pack Voltage": "403.2",
		"Current":      "-12.5",
		"SOC":          "87",
		"SOH":          "99",
	})

	require.False(t, s.Time.IsZero())
	assert.Equal(t, "2025-03-14", s.DateKey)
	require.NotNil(t, s.PackVoltage)
	assert.Equal(t, 403.2, *s.PackVoltage)
	require.NotNil(t, s.Current)
	assert.Equal(t, -12.5, *s.Current)
	assert.Equal(t, 87.0, *s.SOC)
	assert.Equal(t, 99.0, *s.SOH)
}

func TestNormalizeMissingIsNotZero(t *testing.T) {
	s := Normalize(map[string]string{
		"Time":         "2025-03-14 10:20:30",
		"Pack Voltage": "n/a",
		"Current":      "",
	})
	assert.Nil(t, s.PackVoltage)
	assert.Nil(t, s.Current)
	assert.Nil(t, s.SOC)
}

func TestParseNumberCommas(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"1,234", 1234, true},
		{"1,234.5", 1234.5, true},
		{"12,345,678", 12345678, true},
		{"-1,234", -1234, true},
		// A decimal comma must become a missing value, never 35.
		{"3,5", 0, false},
		{"1,23", 0, false},
		{"1,2345", 0, false},
		{"1234,567", 0, false},
		{",123", 0, false},
		{"1,234.5,6", 0, false},
		{"1,2a4", 0, false},
	}
	for _, c := range cases {
		v, ok := parseNumber(c.raw)
		assert.Equal(t, c.ok, ok, "parseNumber(%q)", c.raw)
		if c.ok {
			assert.Equal(t, c.want, v, "parseNumber(%q)", c.raw)
		}
	}
}

func TestNormalizeDecimalCommaIsMissing(t *testing.T) {
	s := Normalize(map[string]string{
		"Time":         "2025-03-14 10:20:30",
		"Pack Voltage": "403,2",
		"Current":      "1,250",
	})
	assert.Nil(t, s.PackVoltage)
	require.NotNil(t, s.Current)
	assert.Equal(t, 1250.0, *s.Current)
}

func TestNormalizeChannels(t *testing.T) {
	s := Normalize(map[string]string{
		"cell1":  "3512",
		"Cell2":  "3498",
		"temp1":  "23.5",
		"bal1":   "ACTIVE",
		"bal2":   "0",
		"relay1": "ON",
		"relay2": "STICKING",
		"din1":   "1",
		"din2":   "0",
	})

	assert.Equal(t, 3512.0, s.Cells[1])
	assert.Equal(t, 3498.0, s.Cells[2])
	assert.Equal(t, 23.5, s.Temps[1])
	assert.Equal(t, BalanceActive, s.Balancing[1])
	assert.Equal(t, BalanceIdle, s.Balancing[2])
	assert.Equal(t, RelayOn, s.Relays[1])
	assert.Equal(t, RelaySticking, s.Relays[2])
	assert.True(t, s.Inputs[1])
	assert.False(t, s.Inputs[2])
}

func TestNormalizeKeepsInvalidRawButExcludesFromAggregates(t *testing.T) {
	s := Normalize(map[string]string{
		"cell1": "3500",
		"cell2": "65535", // sensor error value
		"cell3": "3600",
		"temp1": "25",
		"temp2": "-273", // sensor error value
	})

	// Raw values retained for inspection.
	assert.Equal(t, 65535.0, s.Cells[2])
	assert.Equal(t, -273.0, s.Temps[2])

	// Aggregates ignore them.
	require.NotNil(t, s.MaxCell)
	assert.Equal(t, 3, s.MaxCell.ID)
	assert.Equal(t, 3600.0, s.MaxCell.Millivolts)
	require.NotNil(t, s.CellSpread)
	assert.Equal(t, 100.0, *s.CellSpread)
	require.NotNil(t, s.MaxTemp)
	assert.Equal(t, 25.0, s.MaxTemp.Celsius)
	require.NotNil(t, s.TempSpread)
	assert.Equal(t, 0.0, *s.TempSpread)

	assert.NotContains(t, s.ValidCells(), 2)
	assert.NotContains(t, s.ValidTemps(), 2)
}

func TestNormalizeDerivedExtremes(t *testing.T) {
	s := Normalize(map[string]string{
		"cell1": "3500",
		"cell2": "3450",
		"cell3": "3610",
		"temp1": "22",
		"temp2": "31",
	})

	assert.Equal(t, &CellReading{ID: 3, Millivolts: 3610}, s.MaxCell)
	assert.Equal(t, &CellReading{ID: 2, Millivolts: 3450}, s.MinCell)
	assert.Equal(t, 160.0, *s.CellSpread)
	assert.Equal(t, &TempReading{ID: 2, Celsius: 31}, s.MaxTemp)
	assert.Equal(t, &TempReading{ID: 1, Celsius: 22}, s.MinTemp)
	assert.Equal(t, 9.0, *s.TempSpread)
}

func TestNormalizeTimeLayouts(t *testing.T) {
	for _, raw := range []string{
		"2025-03-14 10:20:30",
		"2025-03-14T10:20:30Z",
		"14/03/2025 10:20:30",
		"2025/03/14 10:20:30",
	} {
		s := Normalize(map[string]string{"Timestamp": raw})
		assert.Equal(t, "2025-03-14", s.DateKey, raw)
	}

	// Epoch seconds.
	s := Normalize(map[string]string{"Time": "1741947630"})
	assert.Equal(t, time.Unix(1741947630, 0).UTC(), s.Time)
}

func TestNormalizeInsulationAndEnergy(t *testing.T) {
	s := Normalize(map[string]string{
		"Insulation System":   "1200",
		"Insulation Res+":     "900",
		"Insulation Negative": "1100",
		"Charged Energy":      "152.4",
		"Discharged Energy":   "140.1",
	})
	assert.Equal(t, 1200.0, *s.InsulationSystem)
	assert.Equal(t, 900.0, *s.InsulationPositive)
	assert.Equal(t, 1100.0, *s.InsulationNegative)
	assert.Equal(t, 152.4, *s.ChargedEnergy)
	assert.Equal(t, 140.1, *s.DischargedEnergy)
}
