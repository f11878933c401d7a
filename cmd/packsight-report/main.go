/*
packsight-report - one-shot workbook analysis report.
Copyright (C) 2025, The Packsight Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	arg "github.com/alexflint/go-arg"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/packsight/packsight/anomaly"
	"github.com/packsight/packsight/downsample"
	"github.com/packsight/packsight/engine"
	"github.com/packsight/packsight/faults"
	"github.com/packsight/packsight/packstats"
	"github.com/packsight/packsight/telemetry"
)

var version = "No version provided"

var log = logrus.New()

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type argSpec struct {
	Workbook string `arg:"positional,required" help:"Exported workbook to analyze"`
	Out      string `arg:"-o,--out" help:"Write the JSON report to this file instead of stdout"`
	Date     string `arg:"--date" help:"Restrict the summary to one date (YYYY-MM-DD)"`
	Points   int    `arg:"--points" help:"Downsample each series in the JSON report to at most this many points"`
	Window   int    `arg:"--anomaly-window" help:"Trailing-window length for the anomaly baseline"`
	JSON     bool   `arg:"--json" help:"Emit the JSON report instead of a text summary"`
	LogLevel string `arg:"-l,--log-level" default:"warn" help:"Set the logging level (debug, info, warn, error)"`
}

func (argSpec) Version() string {
	return version
}

func procArgs() argSpec {
	args := argSpec{}
	arg.MustParse(&args)
	return args
}

// Metrics included as downsampled tracks when --points is given.
var reportMetrics = []string{
	engine.MetricPackVoltage,
	engine.MetricCurrent,
	engine.MetricSOC,
	engine.MetricCellSpread,
	engine.MetricMaxCell,
	engine.MetricMinCell,
	engine.MetricMaxTemp,
}

// report is the JSON document the tool emits: device info, summary,
// fault and anomaly timelines, and the series either as full samples or
// as downsampled per-metric tracks.
type report struct {
	Device    engine.DeviceInfo             `json:"device"`
	CellRange telemetry.CellRange           `json:"cellRange"`
	Dates     []string                      `json:"dates"`
	Summary   *packstats.Summary            `json:"summary,omitempty"`
	Faults    []faults.Event                `json:"faults"`
	Anomalies []anomaly.Anomaly             `json:"anomalies"`
	Samples   []telemetry.Sample            `json:"samples,omitempty"`
	Series    map[string][]downsample.Point `json:"series,omitempty"`
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err.Error())
	}
}

func runMain() error {
	args := procArgs()
	if level, err := logrus.ParseLevel(args.LogLevel); err == nil {
		log.SetLevel(level)
	}

	session := engine.NewSession(engine.Options{AnomalyWindow: args.Window}, log)
	defer session.Close()

	ch := session.Subscribe()
	id := session.Load(args.Workbook)
	for ev := range ch {
		if ev.LoadID != id {
			continue
		}
		if ev.Err != nil {
			return ev.Err
		}
		break
	}

	// --out and --points only make sense for the JSON document.
	if args.JSON || args.Out != "" || args.Points > 0 {
		return writeReport(args.Out, buildReport(session, args.Date, args.Points))
	}

	printReport(session.Result(), session.SummaryFor(args.Date))
	return nil
}

// buildReport assembles the JSON document from a loaded session. With
// points > 0 the series is included as downsampled metric tracks,
// otherwise as the raw samples (restricted to --date when given).
func buildReport(session *engine.Session, date string, points int) report {
	res := session.Result()
	rep := report{
		Device:    res.Device,
		CellRange: res.CellRange,
		Dates:     res.Series.Dates,
		Summary:   session.SummaryFor(date),
		Faults:    res.Faults,
		Anomalies: res.Anomalies,
	}

	if points > 0 {
		rep.Series = make(map[string][]downsample.Point, len(reportMetrics))
		for _, metric := range reportMetrics {
			if pts := session.Points(date, metric, points); len(pts) > 0 {
				rep.Series[metric] = pts
			}
		}
		return rep
	}

	if date != "" {
		rep.Samples = res.Series.SamplesFor(date)
	} else {
		rep.Samples = res.Series.Samples
	}
	return rep
}

// writeReport encodes the report to the given file, or stdout when path
// is empty.
func writeReport(path string, rep report) error {
	if path == "" {
		return encodeReport(os.Stdout, rep)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeReport(f, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeReport(w io.Writer, rep report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func printReport(res *engine.Result, sm *packstats.Summary) {
	fmt.Printf("Samples:   %d over %d day(s)\n", len(res.Series.Samples), len(res.Series.Dates))
	fmt.Printf("Cells:     %d (index %d-%d)\n", res.CellRange.Count, res.CellRange.Min, res.CellRange.Max)
	if res.Device.HWID != "" {
		fmt.Printf("Device:    %s (%s)\n", res.Device.HWID, res.Device.Product)
	}

	if sm != nil {
		fmt.Printf("Window:    %s to %s (%s)\n",
			sm.Start.Format(time.RFC3339), sm.End.Format(time.RFC3339), sm.Duration)
		if sm.CellVoltage != nil {
			fmt.Printf("Cell mV:   min %.0f  max %.0f  avg %.1f\n",
				sm.CellVoltage.Min, sm.CellVoltage.Max, sm.CellVoltage.Avg)
		}
		if sm.Temperature != nil {
			fmt.Printf("Temp °C:   min %.1f  max %.1f  avg %.1f\n",
				sm.Temperature.Min, sm.Temperature.Max, sm.Temperature.Avg)
		}
		if sm.Efficiency != nil {
			fmt.Printf("Efficiency: %.1f%%\n", *sm.Efficiency)
		}
	}

	fmt.Printf("Faults:    %d\n", len(res.Faults))
	for _, f := range res.Faults {
		state := "cleared"
		if f.Ongoing {
			state = "ongoing"
		}
		fmt.Printf("  0x%02X %-28s sev %d  %s  %s\n",
			f.Code, f.Name, f.Severity, f.Start.Format("2006-01-02 15:04:05"), state)
	}

	fmt.Printf("Anomalies: %d\n", len(res.Anomalies))
	for _, a := range res.Anomalies {
		fmt.Printf("  %s  %s\n", a.Time.Format("2006-01-02 15:04:05"), a.Description)
	}
}
