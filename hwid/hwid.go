package hwid

import "strings"

// Relay channel ids. The channel set is closed: a controller exposes at
// most these eight outputs, and the hardware identifier only selects
// which naming variant applies.
const (
	RelayMainPositive = iota
	RelayMainNegative
	RelayPrecharge
	RelayCharger
	RelayLoad
	RelayHeater
	RelayFan
	RelayAux
)

// RelayCount is the size of the closed relay-channel set.
const RelayCount = 8

// RelayConfig maps relay channel ids to display names. Decoded reports
// whether the names came from a recognised hardware configuration or
// from the static fallback table.
type RelayConfig struct {
	Names   map[int]string `json:"names"`
	Decoded bool           `json:"decoded"`
	Product string         `json:"product,omitempty"`
}

// defaultRelayNames is the fallback when the hardware identifier or
// product detection gives us nothing to go on.
var defaultRelayNames = map[int]string{
	RelayMainPositive: "Main +",
	RelayMainNegative: "Main -",
	RelayPrecharge:    "Precharge",
	RelayCharger:      "Charger",
	RelayLoad:         "Load",
	RelayHeater:       "Heater",
	RelayFan:          "Fan",
	RelayAux:          "Aux",
}

// Per-product naming variants. The true byte-to-name encoding of the
// identifier is undocumented; these tables are keyed off the detected
// product family only, never derived from the identifier bytes.
var productRelayNames = map[string]map[int]string{
	ProductCompact: {
		RelayMainPositive: "Main contactor +",
		RelayMainNegative: "Main contactor -",
		RelayPrecharge:    "Precharge",
		RelayCharger:      "Charge enable",
		RelayLoad:         "Discharge enable",
		RelayHeater:       "Heater",
		RelayFan:          "Fan",
		RelayAux:          "Aux",
	},
	ProductHighVoltage: {
		RelayMainPositive: "HV contactor +",
		RelayMainNegative: "HV contactor -",
		RelayPrecharge:    "Precharge",
		RelayCharger:      "Charger contactor",
		RelayLoad:         "Load contactor",
		RelayHeater:       "Heating circuit",
		RelayFan:          "Cooling fan",
		RelayAux:          "Aux output",
	},
}

// Product families detectable from device-list fields.
const (
	ProductCompact     = "compact"
	ProductHighVoltage = "high-voltage"
)

// Decode turns a hexadecimal hardware-identifier string into its byte
// sequence. It returns nil for anything that is not a well formed
// identifier: empty input, the "device absent" marker "0", odd length,
// or non-hex characters. It never fails with an error; a nil result
// simply means "no decodable identifier".
func Decode(s string) []byte {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return nil
	}
	if len(s)%2 != 0 {
		return nil
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		hi, ok1 := hexVal(s[i])
		lo, ok2 := hexVal(s[i+1])
		if !ok1 || !ok2 {
			return nil
		}
		out[i/2] = hi<<4 | lo
	}
	return out
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// DetectProduct guesses the product family from the device name and the
// declared cell count. An empty string means detection failed and the
// caller should fall back to default relay names.
func DetectProduct(deviceName string, cellCount int) string {
	name := strings.ToLower(deviceName)
	switch {
	case strings.Contains(name, "hv") || cellCount > 24:
		return ProductHighVoltage
	case name != "" || (cellCount > 0 && cellCount <= 24):
		return ProductCompact
	}
	return ""
}

// ResolveRelayNames resolves the relay-id to name mapping for a decoded
// identifier and detected product. Resolution is a two-case decision:
// a recognised product with a decoded identifier gets that product's
// table, anything else gets the static default table.
func ResolveRelayNames(id []byte, product string, cellCount int) RelayConfig {
	if len(id) > 0 {
		if names, ok := productRelayNames[product]; ok {
			return RelayConfig{Names: copyNames(names), Decoded: true, Product: product}
		}
	}
	return RelayConfig{Names: copyNames(defaultRelayNames), Decoded: false, Product: product}
}

func copyNames(names map[int]string) map[int]string {
	out := make(map[int]string, len(names))
	for k, v := range names {
		out[k] = v
	}
	return out
}
