package invoice

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
)

type invoiceResponse struct {
	ID        uuid.UUID      `json:"id"`
	Amount    int64          `json:"amount"`
	Content   string         `json:"content"`
	Address   string         `json:"address"`
	Status    invoice.Status `json:"status"`
	Watched   bool           `json:"watched"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	State     *stateResponse `json:"state,omitempty"`
}

type stateResponse struct {
	Confirmations  int64             `json:"confirmations"`
	FinalAmount    int64             `json:"final_amount"`
	PendingAmount  int64             `json:"pending_amount"`
	DisabledAmount int64             `json:"disabled_amount"`
	FinalMatch     bool              `json:"final_match"`
	TotalMatch     bool              `json:"total_match"`
	Payments       []paymentResponse `json:"payments"`
}

type paymentResponse struct {
	ID      uuid.UUID             `json:"id"`
	TxID    string                `json:"txid"`
	Address string                `json:"address"`
	Amount  int64                 `json:"amount"`
	Status  invoice.PaymentStatus `json:"status"`
}

type historyResponse struct {
	Seq       int64          `json:"seq"`
	PaymentID *uuid.UUID     `json:"payment_id,omitempty"`
	Action    invoice.Action `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	Content   string         `json:"content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func toResponse(inv *invoice.Invoice, state *invoice.State) invoiceResponse {
	resp := invoiceResponse{
		ID:        inv.ID,
		Amount:    inv.Amount,
		Content:   inv.Content,
		Address:   inv.Address,
		Status:    inv.Status,
		Watched:   inv.Watched,
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}

	if state != nil {
		s := &stateResponse{
			Confirmations:  state.Confirmations,
			FinalAmount:    state.FinalAmount,
			PendingAmount:  state.PendingAmount,
			DisabledAmount: state.DisabledAmount,
			FinalMatch:     state.FinalMatch,
			TotalMatch:     state.TotalMatch,
			Payments:       make([]paymentResponse, len(state.Payments)),
		}
		for i, p := range state.Payments {
			s.Payments[i] = paymentResponse{
				ID:      p.ID,
				TxID:    p.TxID,
				Address: p.Address,
				Amount:  p.Amount,
				Status:  p.Status,
			}
		}

		resp.State = s
	}

	return resp
}

func toHistoryList(records []*invoice.History) []historyResponse {
	resp := make([]historyResponse, len(records))
	for i, h := range records {
		resp[i] = historyResponse{
			Seq:       h.Seq,
			PaymentID: h.PaymentID,
			Action:    h.Action,
			Params:    h.Params,
			Content:   h.Content,
			CreatedAt: h.CreatedAt,
		}
	}

	return resp
}
