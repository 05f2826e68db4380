package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/payment"
	"github.com/onnwee/reelcast/internal/tip"
)

const maxWebhookBytes = 64 << 10

// TipSettler settles pending tips. Implemented by *tip.Service.
type TipSettler interface {
	ProcessPayment(ctx context.Context, tipID, intentID string, status tip.Status) (*tip.Tip, error)
}

// WebhookHandlers serves the Stripe webhook.
type WebhookHandlers struct {
	webhookSecret string
	events        payment.EventLog
	tips          TipSettler
	logger        *slog.Logger
}

// NewWebhookHandlers creates the webhook handler. logger may be nil.
func NewWebhookHandlers(webhookSecret string, events payment.EventLog, tips TipSettler, logger *slog.Logger) *WebhookHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandlers{webhookSecret: webhookSecret, events: events, tips: tips, logger: logger}
}

// HandleStripeWebhook applies PaymentIntent outcomes to tips.
// POST /internal/stripe
//
// The event id is claimed before dispatch so redeliveries are acknowledged
// without being applied twice. A transient settlement failure releases the
// claim and answers 500, which makes Stripe retry.
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}
	event, err := webhook.ConstructEvent(body, signature, h.webhookSecret)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook signature verification failed", "error", err)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	log := h.logger.With("event_type", event.Type, "event_id", event.ID)
	if err := h.events.Claim(ctx, event.ID, string(event.Type)); err != nil {
		if errors.Is(err, payment.ErrEventAlreadyProcessed) {
			log.InfoContext(ctx, "duplicate webhook delivery acknowledged")
			w.WriteHeader(http.StatusOK)
			return
		}
		log.ErrorContext(ctx, "failed to claim webhook event", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	var (
		tipID   string
		outcome = payment.OutcomeIgnored
	)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		tipID, outcome, err = h.settle(ctx, log, event, tip.StatusCompleted)
	case stripe.EventTypePaymentIntentPaymentFailed:
		tipID, outcome, err = h.settle(ctx, log, event, tip.StatusFailed)
	default:
		log.DebugContext(ctx, "ignoring unhandled webhook event type")
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to settle tip, releasing event for retry", "tip_id", tipID, "error", err)
		if rerr := h.events.Release(ctx, event.ID); rerr != nil {
			log.ErrorContext(ctx, "failed to release webhook event", "error", rerr)
		}
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	if err := h.events.Resolve(ctx, event.ID, tipID, outcome); err != nil {
		log.WarnContext(ctx, "failed to record webhook outcome", "outcome", outcome, "error", err)
	}
	log.InfoContext(ctx, "webhook event handled", "tip_id", tipID, "outcome", outcome)
	w.WriteHeader(http.StatusOK)
}

// settle applies a PaymentIntent outcome to the tip named in its metadata.
// Intents without a tip_id belong to other flows and are ignored. Only
// unexpected errors are returned; missing or already settled tips are
// reported as rejected.
func (h *WebhookHandlers) settle(ctx context.Context, log *slog.Logger, event stripe.Event, status tip.Status) (string, payment.Outcome, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.ErrorContext(ctx, "failed to parse payment intent", "error", err)
		return "", payment.OutcomeIgnored, nil
	}
	tipID := pi.Metadata["tip_id"]
	if tipID == "" {
		log.WarnContext(ctx, "payment intent has no tip_id metadata", "payment_intent_id", pi.ID)
		return "", payment.OutcomeIgnored, nil
	}

	_, err := h.tips.ProcessPayment(ctx, tipID, pi.ID, status)
	switch {
	case err == nil:
		return tipID, payment.OutcomeSettled, nil
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidState):
		log.WarnContext(ctx, "tip not settled", "tip_id", tipID, "payment_intent_id", pi.ID, "reason", err)
		return tipID, payment.OutcomeRejected, nil
	default:
		return tipID, payment.OutcomePending, err
	}
}
