package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/packsight/packsight/anomaly"
	"github.com/packsight/packsight/engine"
	"github.com/packsight/packsight/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func fixturePath(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Telemetry"))
	rows := [][]interface{}{
		{"Time", "Pack Voltage", "SOC", "cell1", "cell2"},
		{"2025-03-14 08:00:00", 52.1, 81, 3251, 3252},
		{"2025-03-14 08:01:00", 52.0, 81, 3252, 3252},
		{"2025-03-14 08:02:00", 52.0, 80, 3251, 3253},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Telemetry", cell, &row))
	}
	path := t.TempDir() + "/export.xlsx"
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *engine.Session) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	session := engine.NewSession(engine.Options{AnomalyWindow: cfg.Analysis.AnomalyWindow}, nil)
	t.Cleanup(session.Close)
	return NewServer(cfg, session, nil), session
}

func loadAndWait(t *testing.T, session *engine.Session, path string) {
	t.Helper()
	ch := session.Subscribe()
	id := session.Load(path)
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.LoadID == id {
				require.Nil(t, ev.Err)
				return
			}
		case <-deadline:
			t.Fatal("load never completed")
		}
	}
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := do(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestLoadRequiresPath(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := do(srv, http.MethodPost, "/api/v1/load", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoadAccepted(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := do(srv, http.MethodPost, "/api/v1/load", `{"path":"/tmp/whatever.xlsx"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"loadId":1`)
}

func TestResultAfterLoad(t *testing.T) {
	srv, session := newTestServer(t, nil)
	loadAndWait(t, session, fixturePath(t))

	w := do(srv, http.MethodGet, "/api/v1/result", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"loading":false`)
	assert.Contains(t, body, `"2025-03-14"`)
}

func TestSheetRoutes(t *testing.T) {
	srv, session := newTestServer(t, nil)
	loadAndWait(t, session, fixturePath(t))

	w := do(srv, http.MethodGet, "/api/v1/sheets/Telemetry", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Pack Voltage":"52.1"`)

	w = do(srv, http.MethodGet, "/api/v1/sheets/Bogus", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	srv, session := newTestServer(t, nil)

	w := do(srv, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	loadAndWait(t, session, fixturePath(t))

	w = do(srv, http.MethodGet, "/api/v1/stats?date=2025-03-14", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sampleCount":3`)
}

func TestDownsample(t *testing.T) {
	srv, session := newTestServer(t, nil)

	w := do(srv, http.MethodGet, "/api/v1/downsample", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	loadAndWait(t, session, fixturePath(t))

	w = do(srv, http.MethodGet, "/api/v1/downsample?metric=soc&target=3", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"metric":"soc"`)

	w = do(srv, http.MethodGet, "/api/v1/downsample?target=2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit = 0.001
	cfg.Server.RateBurst = 2
	srv, _ := newTestServer(t, cfg)

	router := srv.Router()
	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestCapAnomalies(t *testing.T) {
	in := []anomaly.Anomaly{{
		Description: "cell imbalance",
		Cells: []anomaly.CellVoltage{
			{ID: 1, Millivolts: 3600}, {ID: 2, Millivolts: 3590}, {ID: 3, Millivolts: 3580},
		},
	}}

	out := capAnomalies(in, 2)
	assert.Len(t, out[0].Cells, 2)
	// The source records keep the full implicated list.
	assert.Len(t, in[0].Cells, 3)

	assert.Len(t, capAnomalies(in, 0)[0].Cells, 3)
}
