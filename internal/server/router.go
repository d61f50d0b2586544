// Package server exposes the playback control surface over HTTP and streams
// run events over a websocket.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/v0xg/deskreplay/internal/playback"
	"github.com/v0xg/deskreplay/internal/sequence"
)

// Controller is the playback control surface the handlers drive.
// *playback.Engine implements it.
type Controller interface {
	Load(seq *sequence.Sequence) error
	Start(ctx context.Context, speed float64, loops int) error
	Stop() error
	PauseOrResume() (bool, error)
	Status() playback.Snapshot
	LastStatistics() (playback.Statistics, bool)
	Subscribe(buffer int) (<-chan playback.Event, func())
}

// Options configures the HTTP surface
type Options struct {
	AllowedOrigins []string
	DefaultSpeed   float64
	DefaultLoops   int
	EventBuffer    int
	Logger         *slog.Logger
}

type Handler struct {
	ctl    Controller
	opts   Options
	logger *slog.Logger
}

// NewRouter builds the chi router for ctl
func NewRouter(ctl Controller, opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultSpeed <= 0 {
		opts.DefaultSpeed = 1
	}
	if opts.DefaultLoops < 1 {
		opts.DefaultLoops = 1
	}
	if opts.EventBuffer < 1 {
		opts.EventBuffer = 64
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	h := &Handler{ctl: ctl, opts: opts, logger: opts.Logger}
	r.Route("/api/playback", func(r chi.Router) {
		r.Post("/load", h.Load)
		r.Post("/start", h.Start)
		r.Post("/stop", h.Stop)
		r.Post("/pause", h.PauseOrResume)
		r.Get("/status", h.Status)
		r.Get("/stats", h.Stats)
		r.Get("/events", h.Events)
	})

	return r
}

// requestLogger logs each request through slog with chi's request ID
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			began := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(began).Milliseconds(),
			)
		})
	}
}
