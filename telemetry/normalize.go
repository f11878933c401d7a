package telemetry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// channelField matches per-channel column names like cell1, temp3,
// bal12, relay0 and din2 (case-insensitive).
var channelField = regexp.MustCompile(`^(cell|temp|bal|relay|din)(\d+)$`)

// Timestamp layouts accepted from exported workbooks, tried in order.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006 15:04:05",
	"2006/01/02 15:04:05",
}

// Scalar field aliases. Lookup is case-insensitive on the trimmed
// header name; exports from different firmware releases disagree on
// capitalisation and wording.
var scalarAliases = map[string]string{
	"pack voltage":                 "packVoltage",
	"total voltage":                "packVoltage",
	"current":                      "current",
	"pack current":                 "current",
	"soc":                          "soc",
	"soh":                          "soh",
	"insulation system":            "insSystem",
	"insulation":                   "insSystem",
	"insulation positive":          "insPositive",
	"insulation res+":              "insPositive",
	"insulation negative":          "insNegative",
	"insulation res-":              "insNegative",
	"charged energy":               "charged",
	"accumulated charge energy":    "charged",
	"discharged energy":            "discharged",
	"accumulated discharge energy": "discharged",
}

var timeAliases = map[string]bool{
	"time":      true,
	"timestamp": true,
	"date time": true,
}

// Normalize converts one flat record into a typed Sample. Parsing is
// tolerant: absent or non-numeric values become missing, never zero.
// Out-of-range channel readings are kept raw and only excluded from the
// derived aggregates.
func Normalize(rec map[string]string) Sample {
	s := Sample{}

	for field, raw := range rec {
		key := strings.ToLower(strings.TrimSpace(field))
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if timeAliases[key] {
			if t, ok := parseTime(raw); ok {
				s.Time = t
				s.DateKey = t.Format("2006-01-02")
			}
			continue
		}

		if m := channelField.FindStringSubmatch(key); m != nil {
			idx, _ := strconv.Atoi(m[2])
			switch m[1] {
			case "cell":
				if v, ok := parseNumber(raw); ok {
					if s.Cells == nil {
						s.Cells = map[int]float64{}
					}
					s.Cells[idx] = v
				}
			case "temp":
				if v, ok := parseNumber(raw); ok {
					if s.Temps == nil {
						s.Temps = map[int]float64{}
					}
					s.Temps[idx] = v
				}
			case "bal":
				if s.Balancing == nil {
					s.Balancing = map[int]BalanceState{}
				}
				s.Balancing[idx] = parseBalance(raw)
			case "relay":
				if st, ok := parseRelay(raw); ok {
					if s.Relays == nil {
						s.Relays = map[int]RelayState{}
					}
					s.Relays[idx] = st
				}
			case "din":
				if s.Inputs == nil {
					s.Inputs = map[int]bool{}
				}
				s.Inputs[idx] = parseBool(raw)
			}
			continue
		}

		canon, ok := scalarAliases[key]
		if !ok {
			continue // unrecognized column, leave for raw inspection views
		}
		v, ok := parseNumber(raw)
		if !ok {
			continue
		}
		switch canon {
		case "packVoltage":
			s.PackVoltage = &v
		case "current":
			s.Current = &v
		case "soc":
			s.SOC = &v
		case "soh":
			s.SOH = &v
		case "insSystem":
			s.InsulationSystem = &v
		case "insPositive":
			s.InsulationPositive = &v
		case "insNegative":
			s.InsulationNegative = &v
		case "charged":
			s.ChargedEnergy = &v
		case "discharged":
			s.DischargedEnergy = &v
		}
	}

	deriveAggregates(&s)
	return s
}

// deriveAggregates computes the per-sample extremes and spreads once so
// later passes never rescan the channel maps.
func deriveAggregates(s *Sample) {
	for id, mv := range s.Cells {
		if !CellValid(mv) {
			continue
		}
		if s.MaxCell == nil || mv > s.MaxCell.Millivolts || (mv == s.MaxCell.Millivolts && id < s.MaxCell.ID) {
			s.MaxCell = &CellReading{ID: id, Millivolts: mv}
		}
		if s.MinCell == nil || mv < s.MinCell.Millivolts || (mv == s.MinCell.Millivolts && id < s.MinCell.ID) {
			s.MinCell = &CellReading{ID: id, Millivolts: mv}
		}
	}
	if s.MaxCell != nil && s.MinCell != nil {
		spread := s.MaxCell.Millivolts - s.MinCell.Millivolts
		s.CellSpread = &spread
	}

	for id, c := range s.Temps {
		if !TempValid(c) {
			continue
		}
		if s.MaxTemp == nil || c > s.MaxTemp.Celsius || (c == s.MaxTemp.Celsius && id < s.MaxTemp.ID) {
			s.MaxTemp = &TempReading{ID: id, Celsius: c}
		}
		if s.MinTemp == nil || c < s.MinTemp.Celsius || (c == s.MinTemp.Celsius && id < s.MinTemp.ID) {
			s.MinTemp = &TempReading{ID: id, Celsius: c}
		}
	}
	if s.MaxTemp != nil && s.MinTemp != nil {
		spread := s.MaxTemp.Celsius - s.MinTemp.Celsius
		s.TempSpread = &spread
	}
}

func parseNumber(raw string) (float64, bool) {
	if strings.Contains(raw, ",") {
		// Commas are only accepted as thousands separators. Anything
		// else, like a decimal comma, is a missing value rather than a
		// silently reinterpreted one.
		if !groupedCommas(raw) {
			return 0, false
		}
		raw = strings.ReplaceAll(raw, ",", "")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// groupedCommas reports whether every comma in raw sits in a
// digit-grouping position: one to three digits before the first comma,
// exactly three digits in every group after it, none past the decimal
// point.
func groupedCommas(raw string) bool {
	intPart := raw
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		if strings.Contains(raw[i:], ",") {
			return false
		}
		intPart = raw[:i]
	}
	intPart = strings.TrimLeft(intPart, "+-")

	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	for _, g := range groups {
		for i := 0; i < len(g); i++ {
			if g[i] < '0' || g[i] > '9' {
				return false
			}
		}
	}
	return true
}

func parseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	// Some exports write epoch seconds.
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 1e9 && secs < 1e11 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

func parseRelay(raw string) (RelayState, bool) {
	switch strings.ToUpper(raw) {
	case "ON", "1", "CLOSED":
		return RelayOn, true
	case "OFF", "0", "OPEN":
		return RelayOff, true
	case "STICKING", "STUCK":
		return RelaySticking, true
	}
	return "", false
}

func parseBalance(raw string) BalanceState {
	switch strings.ToUpper(raw) {
	case "ACTIVE", "1", "ON":
		return BalanceActive
	default:
		return BalanceIdle
	}
}

func parseBool(raw string) bool {
	switch strings.ToUpper(raw) {
	case "1", "ON", "TRUE", "HIGH", "CLOSED":
		return true
	}
	return false
}
