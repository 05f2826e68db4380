package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/tip"
)

const defaultCurrency = "USD"

// TipHandlers serves the tip ledger endpoints.
type TipHandlers struct {
	svc *tip.Service
}

// NewTipHandlers creates a new TipHandlers instance.
func NewTipHandlers(svc *tip.Service) *TipHandlers {
	return &TipHandlers{svc: svc}
}

type sendTipRequest struct {
	ToUserID string `json:"to_user_id" validate:"required"`
	VideoID  string `json:"video_id,omitempty"`
	Amount   int64  `json:"amount" validate:"required"`
	Currency string `json:"currency,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Send handles POST /v1/tips.
func (h *TipHandlers) Send(w http.ResponseWriter, r *http.Request) {
	var req sendTipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}
	res, err := h.svc.Send(r.Context(), callerFrom(r), tip.SendInput{
		ToUserID: req.ToUserID,
		VideoID:  req.VideoID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Message:  req.Message,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

// Received handles GET /v1/creators/{userId}/tips/received?limit=.
func (h *TipHandlers) Received(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", tip.DefaultListLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	tips, err := h.svc.Received(r.Context(), callerFrom(r), r.PathValue("userId"), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if tips == nil {
		tips = []*tip.ReceivedTip{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tips": tips})
}

// Sent handles GET /v1/tips/sent?limit=.
func (h *TipHandlers) Sent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", tip.DefaultListLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	tips, err := h.svc.Sent(r.Context(), callerFrom(r), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if tips == nil {
		tips = []*tip.SentTip{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tips": tips})
}

// Stats handles GET /v1/creators/{userId}/tips/stats.
func (h *TipHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Stats(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Earnings handles GET /v1/creators/{userId}/earnings?month=YYYY-MM.
func (h *TipHandlers) Earnings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Earnings(r.Context(), callerFrom(r), r.PathValue("userId"), r.URL.Query().Get("month"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*tip.Earnings{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"earnings": rows})
}

type processPaymentRequest struct {
	Status         string `json:"status" validate:"required,oneof=completed failed"`
	StripeIntentID string `json:"stripe_intent_id,omitempty"`
}

// ProcessPayment handles POST /internal/tips/{id}/payment.
func (h *TipHandlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	t, err := h.svc.ProcessPayment(r.Context(), r.PathValue("id"), req.StripeIntentID, tip.Status(req.Status))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}
