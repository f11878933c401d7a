package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/packsight/packsight/anomaly"
	"github.com/packsight/packsight/engine"
)

type loadRequest struct {
	Path string `json:"path" binding:"required"`
}

// load starts a background analysis of the given workbook. It returns
// immediately with the load id; completion is announced over /ws and
// visible in /api/v1/result.
func (s *Server) load(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	id := s.session.Load(req.Path)
	respond(c, http.StatusAccepted, gin.H{"loadId": id})
}

// resultPayload wraps the engine result with load-state bookkeeping so
// a client can distinguish "still loading" from "last load failed".
type resultPayload struct {
	Loading bool           `json:"loading"`
	Error   *engine.Error  `json:"error,omitempty"`
	Result  *engine.Result `json:"result,omitempty"`
}

func (s *Server) result(c *gin.Context) {
	payload := resultPayload{
		Loading: s.session.Loading(),
		Error:   s.session.LastError(),
	}
	if res := s.session.Result(); res != nil {
		capped := *res
		capped.Anomalies = capAnomalies(res.Anomalies, s.cfg.Analysis.AnomalyDisplayCap)
		payload.Result = &capped
	}

	status := http.StatusOK
	if payload.Result == nil && payload.Loading {
		status = http.StatusAccepted
	}
	respond(c, status, payload)
}

// capAnomalies truncates each anomaly's implicated-cell list for
// display. The engine's records keep the full list.
func capAnomalies(in []anomaly.Anomaly, limit int) []anomaly.Anomaly {
	if limit <= 0 {
		return in
	}
	out := make([]anomaly.Anomaly, len(in))
	for i, a := range in {
		if len(a.Cells) > limit {
			a.Cells = a.Cells[:limit]
		}
		out[i] = a
	}
	return out
}

func (s *Server) sheet(c *gin.Context) {
	name := c.Param("name")
	recs, aerr := s.session.RawSheet(name)
	if aerr != nil {
		status := http.StatusInternalServerError
		if aerr.Kind == engine.KindMissingSheet {
			status = http.StatusNotFound
		}
		respond(c, status, gin.H{"error": aerr})
		return
	}
	respond(c, http.StatusOK, gin.H{"name": name, "records": recs})
}

func (s *Server) stats(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	sm := s.session.SummaryFor(date)
	if sm == nil {
		respond(c, http.StatusNotFound, gin.H{"error": "no data for the requested range"})
		return
	}
	respond(c, http.StatusOK, sm)
}

func (s *Server) downsampled(c *gin.Context) {
	metric := c.DefaultQuery("metric", engine.MetricPackVoltage)
	date := strings.TrimSpace(c.Query("date"))

	target := s.cfg.Analysis.DownsampleTarget
	if raw := c.Query("target"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 3 {
			respond(c, http.StatusBadRequest, gin.H{"error": "target must be an integer >= 3"})
			return
		}
		target = n
	}

	if s.session.Result() == nil {
		respond(c, http.StatusNotFound, gin.H{"error": "no workbook loaded"})
		return
	}
	points := s.session.Points(date, metric, target)
	respond(c, http.StatusOK, gin.H{"metric": metric, "points": points})
}

func (s *Server) health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok", "loading": s.session.Loading()})
}
