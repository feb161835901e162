package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/image-cache/pkg/client"
	"github.com/Sternrassler/image-cache/pkg/metrics"
)

const (
	requestIDHeader = "X-Request-ID"

	// maxPreheatBody bounds the /preheat request body.
	maxPreheatBody = 1 << 20

	// maxPreheatURLs bounds a single preheat batch.
	maxPreheatURLs = 1000
)

// readyCheck reports whether the durable store can serve requests.
type readyCheck func(ctx context.Context) error

type server struct {
	client *client.Client
	ready  readyCheck
	logger zerolog.Logger

	// Background preheats outlive their request; bgCtx ends them on shutdown
	bg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

type preheatRequest struct {
	URLs []string `json:"urls"`
}

type preheatResponse struct {
	Accepted int `json:"accepted"`
}

func newServer(imgClient *client.Client, ready readyCheck, logger zerolog.Logger) *server {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &server{
		client:   imgClient,
		ready:    ready,
		logger:   logger,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.HandleFunc("GET /image", s.imageHandler)
	mux.HandleFunc("POST /preheat", s.preheatHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	return s.withRequestID(mux)
}

// withRequestID propagates X-Request-ID (or a new UUID) to the response
// and to the request-scoped logger.
func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		logger := s.logger.With().Str("request_id", requestID).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

// waitBackground blocks until every background preheat has returned.
func (s *server) waitBackground() {
	s.bg.Wait()
}

// shutdown stops background preheats from starting new fetches and waits for them.
func (s *server) shutdown() {
	s.bgCancel()
	s.bg.Wait()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ready(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) imageHandler(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if !isImageURL(rawURL) {
		http.Error(w, "url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	data, ok := s.client.Get(r.Context(), rawURL)
	if !ok {
		zerolog.Ctx(r.Context()).Debug().Str("url", rawURL).Msg("Image not available")
		http.Error(w, "image not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write image")
	}
}

func (s *server) preheatHandler(w http.ResponseWriter, r *http.Request) {
	var req preheatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreheatBody)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if len(req.URLs) == 0 {
		http.Error(w, "urls must not be empty", http.StatusBadRequest)
		return
	}
	if len(req.URLs) > maxPreheatURLs {
		http.Error(w, fmt.Sprintf("at most %d urls per batch", maxPreheatURLs), http.StatusBadRequest)
		return
	}
	for _, rawURL := range req.URLs {
		if !isImageURL(rawURL) {
			http.Error(w, fmt.Sprintf("invalid url %q", rawURL), http.StatusBadRequest)
			return
		}
	}

	logger := *zerolog.Ctx(r.Context())
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		stats := s.client.Preheat(s.bgCtx, req.URLs)
		logger.Info().
			Int("urls", len(req.URLs)).
			Int("warm", stats.Warm).
			Int("in_flight", stats.InFlight).
			Int("fetched", stats.Fetched).
			Int("failed", stats.Failed).
			Msg("Preheat batch finished")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(preheatResponse{Accepted: len(req.URLs)})
}

func isImageURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// dirCheck verifies the cache directory still exists.
func dirCheck(dir string) readyCheck {
	return func(ctx context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat cache dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("cache dir %s is not a directory", dir)
		}
		return nil
	}
}
