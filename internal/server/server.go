package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/CK6170/Oxyfit-go/colocate"
	"github.com/CK6170/Oxyfit-go/config"
	"github.com/CK6170/Oxyfit-go/models"
	"github.com/CK6170/Oxyfit-go/pipeline"
	"github.com/CK6170/Oxyfit-go/titration"
)

// fitOp tracks the single fit allowed to run at a time.
type fitOp struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	id     string
}

func (o *fitOp) cancelLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
		o.id = ""
	}
}

type Server struct {
	mux *http.ServeMux
	cfg *config.Config

	store   *RunStore
	op      fitOp
	events  *FitStream
	metrics *metrics
}

// New builds the HTTP API. cfg supplies the glass and fit defaults; nil means
// config.Default().
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		store:   NewRunStore(),
		events:  NewFitStream(),
		metrics: newMetrics(),
	}

	// API
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/reduce", s.handleReduce)
	s.mux.HandleFunc("/api/fit", s.handleFit)
	s.mux.HandleFunc("/api/fit/stop", s.handleFitStop)
	s.mux.HandleFunc("/api/download", s.handleDownload)

	// WS
	s.mux.HandleFunc("/ws/fit", s.handleWSFit)

	s.mux.Handle("/metrics", s.metrics.handler())
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Shutdown cancels a running fit.
func (s *Server) Shutdown() {
	s.op.mu.Lock()
	defer s.op.mu.Unlock()
	s.op.cancelLocked()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, 200, HealthResponse{OK: true, Timestamp: time.Now(), Version: pipeline.Version})
}

func parseMultipart(r *http.Request) error {
	return r.ParseMultipartForm(16 << 20)
}

// readPart parses the named multipart file with parse. A missing optional part
// returns ok == false.
func readPart[T any](r *http.Request, field string, optional bool, parse func(io.Reader) (T, error)) (v T, ok bool, err error) {
	var f multipart.File
	f, _, err = r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) && optional {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()
	v, err = parse(io.LimitReader(f, 8<<20))
	if err != nil {
		return v, false, fmt.Errorf("%s: %w", field, err)
	}
	return v, true, nil
}

func decodeInstrument(r io.Reader) (*models.InstrumentConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return pipeline.DecodeInstrument(raw)
}

func (s *Server) handleReduce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := parseMultipart(r); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	flasks, _, err := readPart(r, "flasks", false, titration.ParseFlasks)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	run, _, err := readPart(r, "titration", false, titration.ParseRun)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	bottles, _, err := readPart(r, "bottles", false, pipeline.ReadBottles)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	cfg := *s.cfg
	if g := r.URL.Query().Get("glass"); g != "" {
		cfg.Titration.Glass = g
	}
	sess := &pipeline.Session{Config: &cfg, Flasks: flasks, Run: run, Bottles: bottles}
	res, err := sess.Reduce()
	s.metrics.reduced(err)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	rep := &pipeline.Report{Created: time.Now().UTC(), Reduction: res}
	raw, err := pipeline.EncodeReport(rep, cfg.Fit.SensorID)
	if err != nil {
		s.writeJSON(w, 500, APIError{Error: err.Error()})
		return
	}
	rec := s.store.Put(&RunRecord{Kind: kindReduction, Raw: raw, Session: sess, Report: rep})
	log.Printf("reduce: %s (%d titrations, glass %s)", rec.ID, len(run.Records), cfg.Titration.Glass)
	s.writeJSON(w, 200, ReduceResponse{ReductionID: rec.ID, Bottles: bottles.Len(), Result: res})
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := parseMultipart(r); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	rec, ok := s.store.Get(r.FormValue("reductionId"))
	if !ok || rec.Kind != kindReduction {
		s.writeJSON(w, 404, APIError{Error: "reductionId not found (POST /api/reduce first)"})
		return
	}
	inst, _, err := readPart(r, "instrument", false, decodeInstrument)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	cont, hasCont, err := readPart(r, "continuous", true, pipeline.ReadContinuous)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	sess := *rec.Session
	sess.Instrument = inst
	if hasCont {
		sess.Continuous = cont
	}
	channels, err := s.channelsFor(&sess)
	if err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}
	if _, err := pipeline.FitInput(sess.Bottles, rec.Report.Reduction, channels); err != nil {
		s.writeJSON(w, 400, APIError{Error: err.Error()})
		return
	}

	s.op.mu.Lock()
	s.op.cancelLocked()
	ctx, cancel := context.WithCancel(context.Background())
	id := newID()
	s.op.cancel, s.op.id = cancel, id
	s.op.mu.Unlock()

	go s.runFit(ctx, id, &sess)
	s.writeJSON(w, 202, FitStartResponse{FitID: id})
}

// channelsFor mirrors the channel choice Session.Process makes, including its
// alignment errors.
func (s *Server) channelsFor(sess *pipeline.Session) (*colocate.Aligned, error) {
	if sess.Config.Fit.Align && sess.Continuous != nil {
		a, err := sess.Align()
		if err != nil {
			return nil, fmt.Errorf("align: %w", err)
		}
		return a, nil
	}
	return sess.BottleChannels(), nil
}

func (s *Server) runFit(ctx context.Context, id string, sess *pipeline.Session) {
	started := time.Now()
	defer func() {
		s.op.mu.Lock()
		if s.op.id == id {
			s.op.cancelLocked()
		}
		s.op.mu.Unlock()
	}()

	rep, err := sess.Process(ctx, func(u pipeline.FitUpdate) {
		s.events.Publish(msgProgress, FitProgressDTO{
			FitID:     id,
			Phase:     string(u.Phase),
			Iteration: u.Iteration,
			Cost:      u.Cost,
			X:         u.X,
			Message:   u.Message,
		})
	})
	if errors.Is(err, context.Canceled) {
		s.metrics.fitted(outcomeCanceled, started, nil)
		ev := FitDoneDTO{FitID: id}
		if rep != nil && rep.Fit != nil {
			ev.Fitted = pipeline.NewFittedCoefficients(rep.Fit, sess.Config.Fit.SensorID)
			ev.Warning = rep.Warning
		}
		s.events.Publish(msgCanceled, ev)
		log.Printf("fit %s: canceled", id)
		return
	}
	if err != nil {
		s.metrics.fitted(outcomeError, started, nil)
		s.events.Publish(msgError, map[string]string{"fitId": id, "error": err.Error()})
		log.Printf("fit %s: %v", id, err)
		return
	}

	sensorID := sess.Config.Fit.SensorID
	raw, err := pipeline.EncodeReport(rep, sensorID)
	if err != nil {
		s.metrics.fitted(outcomeError, started, rep.Fit)
		s.events.Publish(msgError, map[string]string{"fitId": id, "error": err.Error()})
		return
	}
	s.store.Put(&RunRecord{ID: id, Kind: kindFit, Raw: raw, Session: sess, Report: rep})

	outcome := outcomeConverged
	if !rep.Fit.Status.Converged {
		outcome = outcomeUnconverged
		log.Printf("fit %s: %s", id, rep.Warning)
	}
	s.metrics.fitted(outcome, started, rep.Fit)
	s.events.Publish(msgDone, FitDoneDTO{
		FitID:   id,
		Fitted:  pipeline.NewFittedCoefficients(rep.Fit, sensorID),
		Warning: rep.Warning,
	})
}

func (s *Server) handleFitStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.op.mu.Lock()
	defer s.op.mu.Unlock()
	s.op.cancelLocked()
	s.writeJSON(w, 200, map[string]bool{"ok": true})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSON(w, 400, APIError{Error: "missing id"})
		return
	}
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeJSON(w, 404, APIError{Error: "not found"})
		return
	}
	name := "reduction.json"
	if rec.Kind == kindFit {
		name = "fitted.json"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	w.WriteHeader(200)
	_, _ = w.Write(rec.Raw)
}
