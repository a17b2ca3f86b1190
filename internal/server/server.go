// Package server exposes scans, overlays and profiles over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/store"
	"github.com/FrenchMajesty/shoewall/pkg/analysis"
	"github.com/FrenchMajesty/shoewall/pkg/types"
)

const defaultMaxUploadBytes = 10 << 20

// Profiles is the profile side of the store used by PUT /api/profiles
type Profiles interface {
	UpsertProfile(ctx context.Context, userID string, p types.UserProfile) error
}

// Scans serves stored scans
type Scans interface {
	GetScan(ctx context.Context, requestID string) (store.Scan, error)
}

// Pinger reports backing store health
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Analysis *analysis.Service
	Profiles Profiles
	Scans    Scans
	Health   Pinger

	MaxUploadBytes int64
	VisionMock     bool
	RankingMock    bool
	Logger         *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Server struct {
	cfg     Config
	started time.Time
	mux     *http.ServeMux
}

func New(cfg Config) *Server {
	cfg.applyDefaults()
	s := &Server{cfg: cfg, started: time.Now(), mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/scans", s.handleScan)
	s.mux.HandleFunc("GET /api/scans/{request_id}", s.handleGetScan)
	s.mux.HandleFunc("POST /api/overlay", s.handleOverlay)
	s.mux.HandleFunc("PUT /api/profiles/{user_id}", s.handleProfile)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.cfg.Logger.Debug("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"latency", time.Since(start),
	)
}

// HTTPServer wraps the handler with the timeouts used in production
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
