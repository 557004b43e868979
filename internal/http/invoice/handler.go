package invoice

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
)

type Handler struct {
	svc *invoice.Service

	// waitTimeout caps how long a wait endpoint may block when the
	// request does not carry its own timeout.
	waitTimeout time.Duration
}

func NewHandler(svc *invoice.Service, waitTimeout time.Duration) *Handler {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}

	return &Handler{svc: svc, waitTimeout: waitTimeout}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/history", h.history)
	r.Get("/{id}/wait", h.wait)
}

func (h *Handler) ChainRoutes(r chi.Router) {
	r.Get("/wait", h.chainWait)
}

type createInvoiceRequest struct {
	Amount  int64  `json:"amount"`
	Content string `json:"content"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := h.svc.Create(r.Context(), req.Amount, req.Content)
	if err != nil {
		if errors.Is(err, invoice.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toResponse(inv, nil)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var updatedSince *time.Time

	if s := r.URL.Query().Get("updated_since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid updated_since", http.StatusBadRequest)
			return
		}

		updatedSince = new(t)
	}

	var resp []invoiceResponse

	err := h.svc.Iterate(r.Context(), updatedSince, func(inv *invoice.Invoice, state *invoice.State) error {
		resp = append(resp, toResponse(inv, state))
		return nil
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if resp == nil {
		resp = []invoiceResponse{}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	inv, state, err := h.svc.Info(r.Context(), id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			http.Error(w, "invoice not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(inv, state)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			http.Error(w, "invoice not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var paymentID *uuid.UUID

	if s := r.URL.Query().Get("payment_id"); s != "" {
		pid, err := uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid payment_id", http.StatusBadRequest)
			return
		}

		paymentID = new(pid)
	}

	records, err := h.svc.History(r.Context(), id, paymentID)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			http.Error(w, "invoice not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toHistoryList(records)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) wait(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	desired := invoice.Status(r.URL.Query().Get("status"))
	if desired == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}

	err = h.svc.WaitForStatus(r.Context(), id, desired, h.timeout(r))
	if err != nil {
		h.waitError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) chainWait(w http.ResponseWriter, r *http.Request) {
	err := h.svc.WaitForChange(r.Context(), r.URL.Query().Get("block"), h.timeout(r))
	if err != nil {
		h.waitError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) timeout(r *http.Request) time.Duration {
	if s := r.URL.Query().Get("timeout"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d < h.waitTimeout {
			return d
		}
	}

	return h.waitTimeout
}

func (h *Handler) waitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invoice.ErrTimeout):
		http.Error(w, "timed out", http.StatusRequestTimeout)
	case errors.Is(err, invoice.ErrNotFound):
		http.Error(w, "invoice not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
