package faults

// Severity levels. A code's severity is a static property from the
// table below, never derived from runtime data.
const (
	SeverityInfo     = 1
	SeverityWarning  = 2
	SeverityCritical = 3
)

type codeInfo struct {
	Name     string
	Severity int
}

// Known BMS fault codes. Unknown codes are never dropped: they get the
// lowest severity and a generic name so they still show on the timeline.
var codeTable = map[int]codeInfo{
	0x01: {"Cell overvoltage", SeverityWarning},
	0x02: {"Cell undervoltage", SeverityWarning},
	0x03: {"Pack overvoltage", SeverityCritical},
	0x04: {"Pack undervoltage", SeverityCritical},
	0x05: {"Charge overcurrent", SeverityWarning},
	0x06: {"Discharge overcurrent", SeverityWarning},
	0x07: {"Cell overtemperature", SeverityCritical},
	0x08: {"Cell undertemperature", SeverityWarning},
	0x09: {"Insulation low", SeverityCritical},
	0x0A: {"Relay sticking", SeverityCritical},
	0x0B: {"Cell voltage spread high", SeverityWarning},
	0x0C: {"Temperature spread high", SeverityWarning},
	0x0D: {"SOC low", SeverityInfo},
	0x0E: {"Balancing overtime", SeverityInfo},
	0x0F: {"Sensor communication lost", SeverityWarning},
	0x10: {"Charger communication lost", SeverityInfo},
}

// CodeName returns the display name for a fault code.
func CodeName(code int) string {
	if info, ok := codeTable[code]; ok {
		return info.Name
	}
	return genericName(code)
}

// CodeSeverity returns the static severity (1-3) for a fault code.
func CodeSeverity(code int) int {
	if info, ok := codeTable[code]; ok {
		return info.Severity
	}
	return SeverityInfo
}

func genericName(code int) string {
	return "Unknown fault 0x" + hexByte(code)
}

func hexByte(code int) string {
	const digits = "0123456789ABCDEF"
	if code < 0 {
		code = 0
	}
	if code <= 0xFF {
		return string([]byte{digits[code>>4&0xF], digits[code&0xF]})
	}
	out := []byte{}
	for code > 0 {
		out = append([]byte{digits[code&0xF]}, out...)
		code >>= 4
	}
	return string(out)
}
