package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/poloniex-ema-bot/internal/circuitbreaker"
	"github.com/mselser95/poloniex-ema-bot/internal/trader"
)

// PairStatusSource lists the status of every traded pair.
type PairStatusSource interface {
	PairStatuses() []trader.Status
}

// BreakerStatusSource reports the circuit breaker state.
type BreakerStatusSource interface {
	GetStatus() circuitbreaker.Status
}

// APIHandler serves the read-only JSON API.
type APIHandler struct {
	pairs   PairStatusSource
	breaker BreakerStatusSource
	logger  *zap.Logger
}

// NewAPIHandler creates a new API handler. Either source may be nil.
func NewAPIHandler(pairs PairStatusSource, breaker BreakerStatusSource, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		pairs:   pairs,
		breaker: breaker,
		logger:  logger,
	}
}

// PairsResponse represents the HTTP response for GET /api/pairs.
type PairsResponse struct {
	Pairs []trader.Status `json:"pairs"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandlePairs handles GET /api/pairs.
func (h *APIHandler) HandlePairs(w http.ResponseWriter, r *http.Request) {
	statuses := h.pairs.PairStatuses()
	if statuses == nil {
		statuses = []trader.Status{}
	}
	h.writeJSON(w, http.StatusOK, PairsResponse{Pairs: statuses})
}

// HandlePair handles GET /api/pairs/{pair}.
func (h *APIHandler) HandlePair(w http.ResponseWriter, r *http.Request) {
	pair := strings.ToUpper(chi.URLParam(r, "pair"))

	h.logger.Debug("pair-status-request", zap.String("pair", pair))

	for _, st := range h.pairs.PairStatuses() {
		if st.Pair == pair {
			h.writeJSON(w, http.StatusOK, st)
			return
		}
	}

	h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "pair not traded: " + pair})
}

// HandleBreaker handles GET /api/circuit-breaker.
func (h *APIHandler) HandleBreaker(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.breaker.GetStatus())
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
