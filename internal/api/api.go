// Package api is the SynapticAI HTTP surface: the cached AI chat route, the
// cache admin route and the health probe.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacobxo0/synapticai-sub001/cache"
	"github.com/jacobxo0/synapticai-sub001/internal/ai"
	"github.com/jacobxo0/synapticai-sub001/middleware"
)

// MaxPromptLen bounds the prompt size accepted by the chat route.
const MaxPromptLen = 8000

// Clearer empties a cache.
type Clearer interface {
	Clear()
}

// Config wires the router.
type Config struct {
	Cache    cache.Cache
	Provider ai.Provider

	// Local is cleared by DELETE /api/cache. When nil the route answers 501.
	Local Clearer

	// CacheTTL is the lifetime of cached replies. Zero means the cache's
	// default.
	CacheTTL time.Duration

	// StoreHealth reports the rate-limit store state for /healthz. May be nil.
	StoreHealth func(context.Context) error

	// Metrics, when set, is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	Logger *slog.Logger
}

type handlers struct {
	cfg    Config
	logger *slog.Logger
}

// NewRouter returns the application router.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
	}
	r.Route("/api", func(r chi.Router) {
		r.Post("/ai/chat", h.chat)
		r.Delete("/cache", h.clearCache)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})
	return r
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Tone   string `json:"tone"`
}

type chatResponse struct {
	Response string `json:"response"`
	Cached   bool   `json:"cached"`
}

// CacheKey derives the cache key of a chat prompt.
func CacheKey(tone, prompt string) string {
	sum := sha256.Sum256([]byte(tone + prompt))
	return "ai:" + hex.EncodeToString(sum[:])
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "body must be a JSON object")
		return
	}
	switch {
	case req.Prompt == "":
		writeError(w, http.StatusBadRequest, "Invalid request", "prompt is required")
		return
	case len(req.Prompt) > MaxPromptLen:
		writeError(w, http.StatusBadRequest, "Invalid request", "prompt is too long")
		return
	}

	ctx := r.Context()
	key := CacheKey(req.Tone, req.Prompt)

	// Only a stored value counts as cached. A reply shared with a concurrent
	// identical request was still generated for this one.
	if val, ok, err := h.cfg.Cache.Get(ctx, key); err == nil && ok {
		middleware.AddLogAttrs(ctx, "cached", true)
		writeJSON(w, http.StatusOK, chatResponse{Response: string(val), Cached: true})
		return
	}

	val, err := h.cfg.Cache.GetOrSet(ctx, key, h.cfg.CacheTTL, func(ctx context.Context) ([]byte, error) {
		text, err := h.cfg.Provider.Generate(ctx, ai.Prompt{Text: req.Prompt, Tone: req.Tone})
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "AI service timeout", "")
			return
		}
		h.logger.ErrorContext(ctx, "chat generation failed", "provider", h.cfg.Provider.Name(), "error", err)
		writeError(w, http.StatusBadGateway, "AI service error", "Failed to get AI response")
		return
	}
	middleware.AddLogAttrs(ctx, "cached", false)
	writeJSON(w, http.StatusOK, chatResponse{Response: string(val), Cached: false})
}

func (h *handlers) clearCache(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Local == nil {
		writeError(w, http.StatusNotImplemented, "Cache clearing not supported", "")
		return
	}
	h.cfg.Local.Clear()
	h.logger.InfoContext(r.Context(), "local cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok"}
	if h.cfg.StoreHealth != nil {
		if err := h.cfg.StoreHealth(r.Context()); err != nil {
			// The limiter fails open, so the server is still serving.
			resp.Store = "degraded"
			resp.Error = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Message: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
