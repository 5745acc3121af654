package query

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"candlefeed/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler serves the candle query HTTP API.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the HTTP handler over the query service.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("component", "query")}
}

// Mount registers the query routes on a chi router.
func (h *Handler) Mount(r chi.Router) {
	r.Use(middleware.Recoverer)
	r.Get("/candles", h.getCandles)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
}

// getCandles handles GET /candles?mint=<string>&interval=<enum>&limit=<int>.
// Missing or invalid mint/interval is a 400; nothing is silently defaulted.
func (h *Handler) getCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mint := q.Get("mint")
	if mint == "" {
		h.clientError(w, "missing_mint", "mint parameter is required")
		return
	}

	iv, ok := model.ParseInterval(q.Get("interval"))
	if !ok {
		h.clientError(w, "invalid_interval", "interval must be one of 1s,1m,5m,15m,1h,4h,8h,12h,24h")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.clientError(w, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.svc.GetCandles(r.Context(), mint, iv, limit)
	if err != nil {
		h.logger.Error("get_candles_failed", "mint", mint, "interval", iv, "error", err)
		h.serverError(w)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		h.logger.Error("encode_response_failed", "mint", mint, "error", err)
	}
}

func (h *Handler) clientError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

func (h *Handler) serverError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal", "message": "failed to read candles"})
}
