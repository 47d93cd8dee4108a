// Package httpsampler serves on-demand CPU profiles over HTTP, in the
// manner of net/http/pprof.
package httpsampler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-sampler/internal/constants"
	"github.com/coral-mesh/coral-sampler/internal/retry"
	"github.com/coral-mesh/coral-sampler/pkg/sampler"
	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
)

// Endpoint paths registered by Register.
const (
	ProfilePath = "/debug/coral-sampler/profile"
	StatusPath  = "/debug/coral-sampler/status"
)

// Handler runs a profiling session for the duration of a request and
// responds with the report.
//
// Query parameters:
//   - seconds: session length, default 10, at most 300
//   - hz: sampling frequency, default 99
//   - format: folded (default), pprof or json
//   - wait: when true, wait for a running session to finish instead of
//     failing with 409
type Handler struct {
	registry *sampler.Registry
	logger   zerolog.Logger
}

// NewHandler creates a handler that profiles through reg.
func NewHandler(reg *sampler.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: reg,
		logger:   logger.With().Str("component", "http-sampler").Logger(),
	}
}

// Register mounts the profile and status endpoints on mux.
func Register(mux *http.ServeMux, reg *sampler.Registry, logger zerolog.Logger) {
	h := NewHandler(reg, logger)
	mux.Handle(ProfilePath, h)
	mux.HandleFunc(StatusPath, h.handleStatus)
}

type profileRequest struct {
	duration    time.Duration
	frequencyHz int
	format      string
	wait        bool
}

func parseProfileRequest(r *http.Request) (profileRequest, error) {
	req := profileRequest{
		duration:    constants.DefaultReportDuration,
		frequencyHz: constants.DefaultFrequencyHz,
		format:      constants.DefaultReportFormat,
	}
	q := r.URL.Query()

	if v := q.Get("seconds"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
			return req, fmt.Errorf("invalid seconds %q", v)
		}
		// Bound before converting; large floats overflow time.Duration.
		if secs > constants.MaxReportDuration.Seconds() {
			return req, fmt.Errorf("seconds exceeds maximum of %s", constants.MaxReportDuration)
		}
		req.duration = time.Duration(secs * float64(time.Second))
	}

	if v := q.Get("hz"); v != "" {
		hz, err := strconv.Atoi(v)
		if err != nil || hz <= 0 || hz > sampler.MaxFrequencyHz {
			return req, fmt.Errorf("invalid hz %q", v)
		}
		req.frequencyHz = hz
	}

	if v := q.Get("format"); v != "" {
		switch v {
		case report.FormatFolded, report.FormatPprof, report.FormatJSON:
			req.format = v
		default:
			return req, fmt.Errorf("%w: %q", report.ErrUnknownFormat, v)
		}
	}

	if v := q.Get("wait"); v != "" {
		wait, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid wait %q", v)
		}
		req.wait = wait
	}

	return req, nil
}

// waitRetry polls for the profiler to become free.
var waitRetry = retry.Config{
	MaxAttempts:    1000,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
}

func (h *Handler) start(r *http.Request, req profileRequest) (*sampler.Guard, error) {
	if !req.wait {
		return sampler.Start(h.registry, req.frequencyHz)
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.MaxReportDuration)
	defer cancel()

	g, err := retry.Do(ctx, waitRetry, func() (*sampler.Guard, error) {
		return sampler.Start(h.registry, req.frequencyHz)
	}, func(err error) bool {
		return errors.Is(err, sampler.ErrAlreadyRunning)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: gave up waiting", sampler.ErrAlreadyRunning)
	}
	return g, err
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := parseProfileRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g, err := h.start(r, req)
	switch {
	case errors.Is(err, sampler.ErrAlreadyRunning):
		http.Error(w, "Profiling session already in progress", http.StatusConflict)
		return
	case errors.Is(err, sampler.ErrInvalidFrequency):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, context.Canceled):
		h.logger.Debug().Msg("Client went away while waiting for the profiler")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("Failed to start profiling session")
		http.Error(w, "Failed to start profiler", http.StatusInternalServerError)
		return
	}
	defer g.Close()

	h.logger.Debug().
		Str("session_id", g.SessionID()).
		Dur("duration", req.duration).
		Int("frequency_hz", req.frequencyHz).
		Msg("Profiling session requested")

	wait := time.NewTimer(req.duration)
	select {
	case <-wait.C:
	case <-r.Context().Done():
		wait.Stop()
		h.logger.Debug().Str("session_id", g.SessionID()).Msg("Client went away, ending session early")
	}

	builder := g.Report().WithLogger(h.logger)
	g.Close()

	if r.Context().Err() != nil {
		return
	}

	rep, err := builder.Build()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build report")
		http.Error(w, "Failed to build report", http.StatusInternalServerError)
		return
	}

	switch req.format {
	case report.FormatPprof:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="cpu.pb.gz"`)
	case report.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Header().Set("X-Coral-Session-Id", rep.SessionID)

	if err := rep.Write(w, req.format); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write report")
	}
}

type statusResponse struct {
	Running     bool   `json:"running"`
	SampleCount uint64 `json:"sample_count"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statusResponse{
		Running:     h.registry.Running(),
		SampleCount: h.registry.SampleCount(),
	}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode status")
	}
}
