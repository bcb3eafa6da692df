package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// MarketHandler serves read-only market rows from the backfilled table.
type MarketHandler struct {
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(markets domain.MarketStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger.With(slog.String("handler", "markets")),
	}
}

// marketResponse is the JSON shape of a market row.
type marketResponse struct {
	Address  string `json:"address"`
	MarketID string `json:"marketId"`
	Question string `json:"question"`
	EndTime  int64  `json:"endTime"`
	Oracle   string `json:"oracle"`
	Vault    string `json:"vault"`
	Status   int16  `json:"status"`
	Outcome  *int64 `json:"outcome"`
	// createdAt is an approximation derived from the creating block number.
	CreatedAt int64 `json:"createdAt"`
}

func toMarketResponse(m domain.Market) marketResponse {
	return marketResponse{
		Address:   m.Address,
		MarketID:  m.MarketID,
		Question:  m.Question,
		EndTime:   m.EndTime,
		Oracle:    m.Oracle,
		Vault:     m.Vault,
		Status:    int16(m.Status),
		Outcome:   m.Outcome,
		CreatedAt: m.CreatedAt,
	}
}

// ListMarkets handles GET /api/markets. An optional status query parameter
// filters by lifecycle state.
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	if v := r.URL.Query().Get("status"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < int(domain.StatusOpen) || n > int(domain.StatusResolved) {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		status := domain.MarketStatus(n)
		opts.Status = &status
	}

	markets, err := h.markets.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list markets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": out})
}

// GetMarket handles GET /api/markets/{address}.
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	m, err := h.markets.GetByAddress(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get market failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(m))
}
