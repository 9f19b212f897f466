// Package target is a small recommendation service used to try load tests
// locally. It serves /health and /predict.
package target

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls how the service misbehaves.
type Config struct {
	// Delay is added before every /predict response
	Delay time.Duration

	// FailEvery makes every Nth /predict request return 503. Zero disables it.
	FailEvery int64
}

// PredictRequest is the body accepted by /predict.
type PredictRequest struct {
	UserID         *int  `json:"user_id"`
	ViewedProducts []int `json:"viewed_products"`
}

// PredictResponse is returned by /predict.
type PredictResponse struct {
	UserID          int   `json:"user_id"`
	Recommendations []int `json:"recommendations"`
}

type server struct {
	cfg      Config
	logger   *zap.Logger
	predicts atomic.Int64
}

// NewHandler returns the service's routes.
func NewHandler(cfg Config, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/predict", s.predict)
	return mux
}

// NewServer wraps the handler in an http.Server tuned for load testing.
func NewServer(addr string, cfg Config, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(cfg, logger),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second + cfg.Delay,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *server) predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	n := s.predicts.Add(1)
	if s.cfg.Delay > 0 {
		time.Sleep(s.cfg.Delay)
	}
	if s.cfg.FailEvery > 0 && n%s.cfg.FailEvery == 0 {
		s.logger.Debug("injected failure", zap.Int64("request", n))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "injected failure"})
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "user_id is required"})
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		UserID:          *req.UserID,
		Recommendations: recommend(req.ViewedProducts),
	})
}

// recommend suggests the products following the last viewed one.
func recommend(viewed []int) []int {
	last := 0
	for _, p := range viewed {
		if p > last {
			last = p
		}
	}
	return []int{last + 1, last + 2, last + 3}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
