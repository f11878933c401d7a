package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/packsight/packsight/engine"
)

func fixturePath(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Telemetry"))
	rows := [][]interface{}{
		{"Time", "Pack Voltage", "SOC", "cell1", "cell2"},
	}
	base := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		rows = append(rows, []interface{}{
			base.Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05"),
			52.1, 81, 3251 + i%3, 3252,
		})
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Telemetry", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func loadedSession(t *testing.T) *engine.Session {
	t.Helper()
	session := engine.NewSession(engine.Options{}, nil)
	t.Cleanup(session.Close)

	ch := session.Subscribe()
	id := session.Load(fixturePath(t))
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.LoadID == id {
				require.Nil(t, ev.Err)
				return session
			}
		case <-deadline:
			t.Fatal("load never completed")
		}
	}
}

func TestBuildReportFullSamples(t *testing.T) {
	rep := buildReport(loadedSession(t), "", 0)

	assert.Len(t, rep.Samples, 20)
	assert.Nil(t, rep.Series)
	assert.Equal(t, []string{"2025-03-14"}, rep.Dates)
	require.NotNil(t, rep.Summary)
	assert.Equal(t, 20, rep.Summary.SampleCount)
}

func TestBuildReportDownsampled(t *testing.T) {
	rep := buildReport(loadedSession(t), "", 5)

	assert.Nil(t, rep.Samples, "downsampled reports must not carry raw samples")
	require.NotNil(t, rep.Series)
	pts, ok := rep.Series[engine.MetricPackVoltage]
	require.True(t, ok)
	assert.Len(t, pts, 5)
	// Metrics absent from the workbook are left out entirely.
	_, ok = rep.Series[engine.MetricMaxTemp]
	assert.False(t, ok)
}

func TestBuildReportDateFilter(t *testing.T) {
	rep := buildReport(loadedSession(t), "1999-01-01", 0)
	assert.Empty(t, rep.Samples)
	assert.Nil(t, rep.Summary)
}

func TestWriteReportToFile(t *testing.T) {
	rep := buildReport(loadedSession(t), "", 5)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeReport(path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rep.Dates, decoded.Dates)
	assert.Len(t, decoded.Series[engine.MetricPackVoltage], 5)
}
