package server

import (
	stdjson "encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ravikanth/payflux/internal/domain"
	"github.com/ravikanth/payflux/internal/service"
	"github.com/ravikanth/payflux/internal/store"
)

// APIHandlers exposes HTTP handlers for the webhook and query endpoints.
type APIHandlers struct {
	logger   *slog.Logger
	ingestor *service.Ingestor
	query    *service.Query
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, ingestor *service.Ingestor, query *service.Query) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		ingestor: ingestor,
		query:    query,
	}
}

// handleWebhook acknowledges every delivery with 202. Malformed bodies,
// duplicates, and store failures are logged server-side; the sender only ever
// learns that the delivery was received.
func (h *APIHandlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	accepted := acceptedResponse{Message: "Accepted"}

	var payload webhookRequest
	if err := decodeJSON(r, &payload); err != nil {
		h.logger.Warn("malformed webhook body", "error", err)
		respondJSON(w, http.StatusAccepted, accepted)
		return
	}

	h.ingestor.Accept(r.Context(), service.WebhookPayload{
		TransactionID:      payload.TransactionID,
		SourceAccount:      payload.SourceAccount,
		DestinationAccount: payload.DestinationAccount,
		Amount:             payload.Amount,
		Currency:           payload.Currency,
	})

	respondJSON(w, http.StatusAccepted, accepted)
}

func (h *APIHandlers) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/transactions/")
	id = strings.Trim(id, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction ID is required")
		return
	}

	tx, err := h.query.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch transaction", "error", err, "transactionId", id)
		writeError(w, http.StatusInternalServerError, "failed to fetch transaction")
		return
	}

	respondJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *APIHandlers) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 0)
	offset := parseInt(query.Get("offset"), 0)

	txs, err := h.query.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}
	respondJSON(w, http.StatusOK, resp)
}

// --- Request & Response DTOs ---

type webhookRequest struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}

type transactionResponse struct {
	TransactionID      string         `json:"transaction_id"`
	SourceAccount      string         `json:"source_account"`
	DestinationAccount string         `json:"destination_account"`
	Amount             stdjson.Number `json:"amount"`
	Currency           string         `json:"currency"`
	Status             string         `json:"status"`
	CreatedAt          string         `json:"created_at"`
	ProcessedAt        *string        `json:"processed_at"`
}

func toTransactionResponse(tx domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID:      tx.ID,
		SourceAccount:      tx.SourceAccount,
		DestinationAccount: tx.DestinationAccount,
		Amount:             stdjson.Number(tx.Amount.String()),
		Currency:           tx.Currency,
		Status:             tx.Status,
		CreatedAt:          formatTime(tx.CreatedAt),
		ProcessedAt:        formatTimePtr(tx.ProcessedAt),
	}
}

// --- Helpers ---

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	return json.NewDecoder(r.Body).Decode(dst)
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(ts *time.Time) *string {
	if ts == nil || ts.IsZero() {
		return nil
	}
	s := formatTime(*ts)
	return &s
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
