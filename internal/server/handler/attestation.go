package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AttestationHandler proxies attestation lookups to the upstream indexer
// service. It is a pure pass-through: non-2xx statuses are forwarded
// verbatim and a transport failure yields a generic 500.
type AttestationHandler struct {
	indexerURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewAttestationHandler creates a new AttestationHandler forwarding to
// indexerURL.
func NewAttestationHandler(indexerURL string, logger *slog.Logger) *AttestationHandler {
	return &AttestationHandler{
		indexerURL: strings.TrimRight(indexerURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("handler", "attestations")),
	}
}

// GetAttestation handles GET /api/attestations/{requestId}.
func (h *AttestationHandler) GetAttestation(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestId")
	target := h.indexerURL + "/attestations/" + url.PathEscape(requestID)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch attestation")
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "indexer unreachable",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch attestation")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		writeError(w, http.StatusNotFound, "attestation not found")
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeError(w, resp.StatusCode, "failed to fetch attestation from indexer")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.WarnContext(r.Context(), "attestation body copy interrupted",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
}
