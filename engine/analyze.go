package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/packsight/packsight/anomaly"
	"github.com/packsight/packsight/faults"
	"github.com/packsight/packsight/hwid"
	"github.com/packsight/packsight/telemetry"
	"github.com/packsight/packsight/workbook"
)

// DeviceInfo describes the controller that produced a workbook, built
// once per file and immutable afterwards.
type DeviceInfo struct {
	Release   string              `json:"release,omitempty"`
	Firmware  string              `json:"firmware,omitempty"`
	HWID      string              `json:"hwid,omitempty"`
	Product   string              `json:"product,omitempty"`
	Relays    hwid.RelayConfig    `json:"relays"`
	CellRange telemetry.CellRange `json:"cellRange"`
}

// Result is the one-shot output message of a load: everything the
// presentation layer needs to render the session.
type Result struct {
	Series    *telemetry.Series   `json:"series"`
	Faults    []faults.Event      `json:"faults"`
	Anomalies []anomaly.Anomaly   `json:"anomalies"`
	Device    DeviceInfo          `json:"device"`
	CellRange telemetry.CellRange `json:"cellRange"`
}

// How many rows to normalize between cancellation checks.
const cancelCheckEvery = 512

// analyze runs the full pipeline over one open workbook. Per-row and
// per-event problems are recovered in place; only a workbook that
// yields no telemetry at all fails the load.
func analyze(ctx context.Context, wb *workbook.Workbook, window int) (*Result, *Error) {
	device := readDeviceInfo(wb)

	samples, aerr := readTelemetry(ctx, wb)
	if aerr != nil {
		return nil, aerr
	}
	if len(samples) == 0 {
		return nil, loadFailure("no telemetry rows found in any sheet")
	}

	series := telemetry.BuildSeries(samples)
	if err := ctx.Err(); err != nil {
		return nil, loadFailure("load cancelled")
	}

	rawFaults := readFaultEvents(wb)
	faultEvents := faults.Track(rawFaults, series)
	if err := ctx.Err(); err != nil {
		return nil, loadFailure("load cancelled")
	}

	anomalies := anomaly.NewDetector(window).Scan(series)

	device.CellRange = series.CellRange
	device.Relays = hwid.ResolveRelayNames(hwid.Decode(device.HWID), device.Product, series.CellRange.Count)

	return &Result{
		Series:    series,
		Faults:    faultEvents,
		Anomalies: anomalies,
		Device:    device,
		CellRange: series.CellRange,
	}, nil
}

// readDeviceInfo extracts device identity from the device-list sheet.
// A missing sheet is recovered: the result simply has partial device
// info and the relay resolver falls back to default names.
func readDeviceInfo(wb *workbook.Workbook) DeviceInfo {
	info := DeviceInfo{}
	sheet := wb.FindSheet("device")
	if sheet == "" {
		return info
	}
	recs, err := wb.Records(sheet)
	if err != nil || len(recs) == 0 {
		return info
	}

	rec := recs[0]
	info.Release = fieldValue(rec, "Release", "Release Version")
	info.Firmware = fieldValue(rec, "Firmware", "Firmware Version")
	deviceName := fieldValue(rec, "Device Name", "Device")

	count := 0
	if raw := fieldValue(rec, "Hardware Device count"); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			count = n
		}
	}
	if count <= 0 || count > 3 {
		count = 3
	}

	// First decodable identifier wins; "0" marks an absent device and
	// is skipped, as are malformed values.
	for i := 1; i <= count; i++ {
		raw := fieldValue(rec, "Hardware Device "+strconv.Itoa(i)+" HWID")
		if hwid.Decode(raw) != nil {
			info.HWID = strings.TrimSpace(raw)
			break
		}
	}

	cellCount := 0
	if raw := fieldValue(rec, "Cell count", "Cells"); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			cellCount = n
		}
	}
	info.Product = hwid.DetectProduct(deviceName, cellCount)
	return info
}

// readTelemetry normalizes every row of every telemetry sheet, in
// workbook order. Rows without a parseable timestamp cannot be placed
// on the timeline and are dropped.
func readTelemetry(ctx context.Context, wb *workbook.Workbook) ([]telemetry.Sample, *Error) {
	var samples []telemetry.Sample
	for _, sheet := range wb.SheetNames() {
		if !isTelemetrySheet(wb, sheet) {
			continue
		}
		recs, err := wb.Records(sheet)
		if err != nil {
			return nil, loadFailure("failed to read sheet %q: %v", sheet, err)
		}
		for i, rec := range recs {
			if i%cancelCheckEvery == 0 && ctx.Err() != nil {
				return nil, loadFailure("load cancelled")
			}
			s := telemetry.Normalize(rec)
			if s.Time.IsZero() {
				continue
			}
			samples = append(samples, s)
		}
	}
	return samples, nil
}

// isTelemetrySheet recognizes sheets carrying per-sample data: a time
// column plus at least one known channel or scalar column.
func isTelemetrySheet(wb *workbook.Workbook, sheet string) bool {
	lower := strings.ToLower(sheet)
	if strings.Contains(lower, "device") || strings.Contains(lower, "fault") {
		return false
	}
	header, err := wb.Header(sheet)
	if err != nil || header == nil {
		return false
	}

	hasTime, hasData := false, false
	for _, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		switch key {
		case "time", "timestamp", "date time":
			hasTime = true
		case "pack voltage", "total voltage", "current", "soc", "soh":
			hasData = true
		}
		if strings.HasPrefix(key, "cell") || strings.HasPrefix(key, "temp") {
			hasData = true
		}
	}
	return hasTime && hasData
}

// readFaultEvents parses the fault-code sheet into raw set/clear
// events, preserving sheet order. No fault sheet means no fault
// timeline, which is fine.
func readFaultEvents(wb *workbook.Workbook) []faults.RawEvent {
	sheet := wb.FindSheet("fault")
	if sheet == "" {
		return nil
	}
	recs, err := wb.Records(sheet)
	if err != nil {
		return nil
	}

	var out []faults.RawEvent
	for _, rec := range recs {
		code, ok := parseCode(fieldValue(rec, "Code", "Fault Code"))
		if !ok {
			continue
		}
		set, ok := parseAction(fieldValue(rec, "Action", "State"))
		if !ok {
			continue
		}
		t, ok := parseEventTime(fieldValue(rec, "Time", "Timestamp"))
		if !ok {
			continue
		}
		out = append(out, faults.RawEvent{Code: code, Set: set, Time: t})
	}
	return out
}

func parseCode(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(raw), "0x") {
		n, err := strconv.ParseInt(raw[2:], 16, 32)
		return int(n), err == nil
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func parseAction(raw string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SET", "1", "ON", "OPEN":
		return true, true
	case "CLEAR", "0", "OFF", "CLOSE", "CLOSED":
		return false, true
	}
	return false, false
}

var eventTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006 15:04:05",
}

func parseEventTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fieldValue(rec workbook.Record, names ...string) string {
	for _, n := range names {
		if v, ok := rec[n]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	// Case-insensitive fallback; exports are not consistent about it.
	for _, n := range names {
		for k, v := range rec {
			if strings.EqualFold(strings.TrimSpace(k), n) && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}
