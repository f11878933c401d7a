package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/packsight/packsight/downsample"
	"github.com/packsight/packsight/packstats"
	"github.com/packsight/packsight/telemetry"
	"github.com/packsight/packsight/workbook"
)

// Options tunes one session's analysis.
type Options struct {
	// AnomalyWindow is the trailing-window length for the z-score
	// baseline; 0 means the detector default.
	AnomalyWindow int
}

// LoadEvent is broadcast to subscribers when a load completes. Err is
// nil on success.
type LoadEvent struct {
	LoadID uint64 `json:"loadId"`
	Err    *Error `json:"error,omitempty"`
}

// Session owns the analysis state for one viewer session. One load is
// logically active at a time: starting a new load supersedes the
// previous one, and a superseded load's output is discarded on arrival.
// The analysis itself runs in a background goroutine that owns its
// working data exclusively until it hands over a Result, so no locking
// is needed inside the pipeline.
type Session struct {
	opts Options
	log  *logrus.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	loading bool
	path    string // workbook path of the last successful load
	result  *Result
	lastErr *Error

	sheets map[string][]workbook.Record

	subs []chan LoadEvent

	// Last-inputs memoization for the derived views. Identity of the
	// result pointer is part of every key, so a new load naturally
	// invalidates everything.
	summaryKey string
	summaryVal *packstats.Summary
	pointsKey  string
	pointsVal  []downsample.Point
}

// NewSession creates a session. A nil logger falls back to the
// standard logrus logger.
func NewSession(opts Options, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		opts:   opts,
		log:    log,
		sheets: map[string][]workbook.Record{},
	}
}

// Load starts analyzing the workbook at path in the background and
// returns the load id. Any in-flight load is superseded immediately;
// its result will be discarded when it arrives. The previous successful
// result stays visible until the new load succeeds.
func (s *Session) Load(path string) uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loading = true
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"load": gen, "path": path}).Info("Starting workbook load")
	go s.run(ctx, gen, path)
	return gen
}

func (s *Session) run(ctx context.Context, gen uint64, path string) {
	result, aerr := loadWorkbook(ctx, path, s.opts.AnomalyWindow)
	s.finish(gen, path, result, aerr)
}

func loadWorkbook(ctx context.Context, path string, window int) (*Result, *Error) {
	wb, err := workbook.Open(path)
	if err != nil {
		return nil, loadFailure("cannot open workbook: %v", err)
	}
	defer wb.Close()
	return analyze(ctx, wb, window)
}

// finish delivers a load's outcome. Stale generations, and anything
// arriving after Close, are dropped without touching session state.
func (s *Session) finish(gen uint64, path string, result *Result, aerr *Error) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		s.log.WithField("load", gen).Debug("Discarding superseded load result")
		return
	}

	s.loading = false
	s.lastErr = aerr
	if aerr == nil {
		s.result = result
		s.path = path
		s.sheets = map[string][]workbook.Record{}
		s.summaryKey, s.summaryVal = "", nil
		s.pointsKey, s.pointsVal = "", nil
	}

	// Broadcast while still holding the lock so Close can never close a
	// channel mid-send. Sends never block; a stalled subscriber just
	// misses the event.
	ev := LoadEvent{LoadID: gen, Err: aerr}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()

	if aerr != nil {
		s.log.WithField("load", gen).Warnf("Load failed: %s", aerr.Message)
	} else {
		s.log.WithFields(logrus.Fields{
			"load":      gen,
			"samples":   len(result.Series.Samples),
			"faults":    len(result.Faults),
			"anomalies": len(result.Anomalies),
		}).Info("Load complete")
	}
}

// Loading reports whether a load is currently in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Result returns the last successful load's result, or nil if none has
// completed yet.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// LastError returns the structured error of the most recent completed
// load, or nil if it succeeded.
func (s *Session) LastError() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe registers for load-completion events. The channel is
// buffered; events are dropped rather than block a slow subscriber.
// Close closes every subscriber channel; subscribing to a closed
// session returns an already-closed channel.
func (s *Session) Subscribe() <-chan LoadEvent {
	ch := make(chan LoadEvent, 4)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// RawSheet returns one sheet's records for inspection views. Each
// sheet is read from the workbook at most once per session; repeated
// calls return the cached slice.
func (s *Session) RawSheet(name string) ([]workbook.Record, *Error) {
	s.mu.Lock()
	if recs, ok := s.sheets[name]; ok {
		s.mu.Unlock()
		return recs, nil
	}
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return nil, &Error{Kind: KindLoadFailure, Message: "no workbook loaded"}
	}

	wb, err := workbook.Open(path)
	if err != nil {
		return nil, loadFailure("cannot reopen workbook: %v", err)
	}
	defer wb.Close()

	if !wb.HasSheet(name) {
		return nil, &Error{Kind: KindMissingSheet, Message: fmt.Sprintf("sheet %q not found", name)}
	}
	recs, rerr := wb.Records(name)
	if rerr != nil {
		return nil, loadFailure("cannot read sheet %q: %v", name, rerr)
	}

	s.mu.Lock()
	// Another caller may have raced us; keep whichever landed first so
	// the "once per name" contract holds for observers.
	if cached, ok := s.sheets[name]; ok {
		recs = cached
	} else {
		s.sheets[name] = recs
	}
	s.mu.Unlock()
	return recs, nil
}

// SummaryFor returns session statistics for one date key, or for the
// whole series when dateKey is empty. Nil when nothing is loaded or
// the date has no samples. Memoized on last inputs only.
func (s *Session) SummaryFor(dateKey string) *packstats.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}

	key := fmt.Sprintf("%p|%s", s.result, dateKey)
	if key == s.summaryKey {
		return s.summaryVal
	}

	samples := s.subsetLocked(dateKey)
	val := packstats.Summarize(samples, s.result.Faults, s.result.Anomalies)
	s.summaryKey, s.summaryVal = key, val
	return val
}

// Points returns a bounded rendering view of one metric, optionally
// restricted to a date key, downsampled to at most target points.
// Memoized on last inputs only.
func (s *Session) Points(dateKey, metric string, target int) []downsample.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}

	key := fmt.Sprintf("%p|%s|%s|%d", s.result, dateKey, metric, target)
	if key == s.pointsKey {
		return s.pointsVal
	}

	points := seriesPoints(s.subsetLocked(dateKey), metric)
	val := downsample.LTTB(points, target)
	s.pointsKey, s.pointsVal = key, val
	return val
}

func (s *Session) subsetLocked(dateKey string) []telemetry.Sample {
	if dateKey == "" {
		return s.result.Series.Samples
	}
	return s.result.Series.SamplesFor(dateKey)
}

// Metric names accepted by Points.
const (
	MetricPackVoltage = "pack_voltage"
	MetricCurrent     = "current"
	MetricSOC         = "soc"
	MetricCellSpread  = "cell_spread"
	MetricMaxCell     = "max_cell"
	MetricMinCell     = "min_cell"
	MetricMaxTemp     = "max_temp"
)

func seriesPoints(samples []telemetry.Sample, metric string) []downsample.Point {
	points := make([]downsample.Point, 0, len(samples))
	for i := range samples {
		s := &samples[i]
		var v *float64
		switch metric {
		case MetricCurrent:
			v = s.Current
		case MetricSOC:
			v = s.SOC
		case MetricCellSpread:
			v = s.CellSpread
		case MetricMaxCell:
			if s.MaxCell != nil {
				v = &s.MaxCell.Millivolts
			}
		case MetricMinCell:
			if s.MinCell != nil {
				v = &s.MinCell.Millivolts
			}
		case MetricMaxTemp:
			if s.MaxTemp != nil {
				v = &s.MaxTemp.Celsius
			}
		default: // MetricPackVoltage
			v = s.PackVoltage
		}
		if v == nil {
			continue
		}
		points = append(points, downsample.Point{X: float64(s.Time.UnixMilli()), Y: *v})
	}
	return points
}

// Close cancels any in-flight load and closes all subscriber channels
// so their consumers' range loops terminate.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}
