package tip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/reelcast/internal/analytics"
	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/payment"
	"github.com/onnwee/reelcast/internal/tracing"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/validate"
	"github.com/onnwee/reelcast/internal/video"
)

// DefaultListLimit bounds received and sent tip listings.
const DefaultListLimit = 50

// EngagementTracker records the tip analytics event and bumps the video's
// tip counter.
type EngagementTracker interface {
	TrackEngagement(ctx context.Context, caller authz.Caller, in analytics.EngagementInput) error
}

// Config holds optional Service dependencies.
type Config struct {
	// Payments creates Stripe PaymentIntents. Nil leaves tips pending until
	// settled through ProcessPayment.
	Payments payment.Client
	Tracker  EngagementTracker
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service implements the tip ledger.
type Service struct {
	repo     Repository
	users    user.Repository
	videos   video.Repository
	payments payment.Client
	tracker  EngagementTracker
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new tip service.
func NewService(repo Repository, users user.Repository, videos video.Repository, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     repo,
		users:    users,
		videos:   videos,
		payments: cfg.Payments,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// SendInput is the argument of Send.
type SendInput struct {
	ToUserID string
	VideoID  string
	Amount   int64 // cents
	Currency string
	Message  string
}

// SendResult identifies the created tip and, when Stripe is configured,
// the client secret used to confirm the payment.
type SendResult struct {
	TipID        string `json:"tip_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Message      string `json:"message"`
}

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Send records a pending tip from the caller to in.ToUserID.
func (s *Service) Send(ctx context.Context, caller authz.Caller, in SendInput) (*SendResult, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if in.Amount < MinAmount {
		return nil, apperr.Validation("minimum tip amount is %d cents", MinAmount)
	}
	if in.Amount > MaxAmount {
		return nil, apperr.Validation("maximum tip amount is %d cents", MaxAmount)
	}
	if !currencyPattern.MatchString(in.Currency) {
		return nil, apperr.Validation("currency must be a 3-letter ISO code")
	}
	if caller.Is(in.ToUserID) {
		return nil, apperr.Validation("cannot tip yourself")
	}
	msg, err := validate.TipMessage(in.Message)
	if err != nil {
		return nil, apperr.Validation("invalid message: %v", err)
	}

	recipient, err := s.users.GetByID(ctx, in.ToUserID)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, apperr.NotFound("recipient not found")
	}
	if err != nil {
		return nil, err
	}
	if !recipient.Settings.AllowTips {
		return nil, apperr.Validation("this creator has not enabled tips")
	}

	t := &Tip{
		FromUserID: caller.UserID,
		ToUserID:   in.ToUserID,
		VideoID:    in.VideoID,
		Amount:     in.Amount,
		Currency:   strings.ToUpper(in.Currency),
		Message:    msg,
		Status:     StatusPending,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, err
	}
	log := s.logger.With("tip_id", t.ID, "from_user_id", t.FromUserID, "to_user_id", t.ToUserID)

	res := &SendResult{TipID: t.ID, Message: "Tip sent successfully!"}
	if s.payments != nil {
		intent, err := s.payments.CreatePaymentIntent(ctx, payment.IntentParams{
			Amount:      t.Amount,
			Currency:    t.Currency,
			Description: "Tip to " + recipient.DisplayName,
			Metadata:    map[string]string{"tip_id": t.ID},
		})
		if err != nil {
			log.ErrorContext(ctx, "failed to create payment intent", "error", err)
			if _, serr := s.repo.Settle(ctx, t.ID, Settlement{Status: StatusFailed}); serr != nil {
				log.ErrorContext(ctx, "failed to mark tip failed", "error", serr)
			}
			return nil, fmt.Errorf("create payment intent: %w", err)
		}
		// The intent carries tip_id metadata, so the webhook can still settle
		// the tip and record the intent id when this write is lost.
		if err := s.repo.SetIntent(ctx, t.ID, intent.ID); err != nil {
			log.WarnContext(ctx, "failed to store payment intent id",
				"stripe_intent_id", intent.ID, "error", err)
		}
		res.ClientSecret = intent.ClientSecret
	}

	if t.VideoID != "" {
		s.trackTip(ctx, caller, t, log)
	}
	log.InfoContext(ctx, "tip created", "amount", t.Amount, "currency", t.Currency)
	return res, nil
}

// trackTip counts the tip against its video right away, before payment
// settles. A missing video only skips the event.
func (s *Service) trackTip(ctx context.Context, caller authz.Caller, t *Tip, log *slog.Logger) {
	var err error
	if s.tracker != nil {
		err = s.tracker.TrackEngagement(ctx, caller, analytics.EngagementInput{
			VideoID:   t.VideoID,
			EventType: analytics.EventTip,
			Amount:    t.Amount,
		})
	} else {
		err = video.AdjustCounter(ctx, s.videos, t.VideoID, video.TipCount, 1)
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, video.ErrVideoNotFound):
		log.DebugContext(ctx, "tip video not found", "video_id", t.VideoID)
	case err != nil:
		log.WarnContext(ctx, "failed to record tip engagement", "video_id", t.VideoID, "error", err)
	}
}

// ProcessPayment settles a pending tip with the outcome reported by Stripe.
// Completed tips are added to the recipient's earnings for the current month.
func (s *Service) ProcessPayment(ctx context.Context, tipID, intentID string, status Status) (_ *Tip, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "tip.process_payment",
		attribute.String("tip.id", tipID),
		attribute.String("tip.status", string(status)),
	)
	defer func() { endSpan(err) }()

	if status != StatusCompleted && status != StatusFailed {
		return nil, apperr.Validation("status must be completed or failed")
	}
	t, err := s.repo.Settle(ctx, tipID, Settlement{
		Status:         status,
		StripeIntentID: intentID,
		Month:          MonthKey(s.now()),
	})
	switch {
	case errors.Is(err, ErrTipNotFound):
		return nil, apperr.NotFound("tip not found")
	case errors.Is(err, ErrNotPending):
		return nil, apperr.InvalidState("tip has already been processed")
	case err != nil:
		return nil, err
	}
	s.logger.InfoContext(ctx, "tip settled", "tip_id", t.ID, "status", t.Status, "amount", t.Amount)
	return t, nil
}

// ReceivedTip is a tip joined with its sender and video for display.
type ReceivedTip struct {
	*Tip
	SenderName string `json:"sender_name"`
	VideoTitle string `json:"video_title"`
}

// SentTip is a tip joined with its recipient and video for display.
type SentTip struct {
	*Tip
	RecipientName string `json:"recipient_name"`
	VideoTitle    string `json:"video_title"`
}

func (s *Service) requireOwner(ctx context.Context, caller authz.Caller, userID string) error {
	if err := caller.RequireSelf(userID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

// names memoizes display-name lookups within one listing.
type names struct {
	users    user.Repository
	videos   video.Repository
	userName map[string]string
	title    map[string]string
}

func (s *Service) newNames() *names {
	return &names{users: s.users, videos: s.videos, userName: map[string]string{}, title: map[string]string{}}
}

func (n *names) user(ctx context.Context, id, fallback string) string {
	if v, ok := n.userName[id]; ok {
		return v
	}
	name := fallback
	if u, err := n.users.GetByID(ctx, id); err == nil && u.DisplayName != "" {
		name = u.DisplayName
	}
	n.userName[id] = name
	return name
}

func (n *names) video(ctx context.Context, id string) string {
	if id == "" {
		return "Direct tip"
	}
	if v, ok := n.title[id]; ok {
		return v
	}
	title := "Direct tip"
	if v, err := n.videos.GetByID(ctx, id); err == nil && v.Description != "" {
		title = v.Description
	}
	n.title[id] = title
	return title
}

// Received lists tips sent to userID, newest first.
func (s *Service) Received(ctx context.Context, caller authz.Caller, userID string, limit int) ([]*ReceivedTip, error) {
	if err := s.requireOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	tips, err := s.repo.ListReceived(ctx, userID, "", clampLimit(limit))
	if err != nil {
		return nil, err
	}
	n := s.newNames()
	out := make([]*ReceivedTip, 0, len(tips))
	for _, t := range tips {
		out = append(out, &ReceivedTip{
			Tip:        t,
			SenderName: n.user(ctx, t.FromUserID, "Anonymous"),
			VideoTitle: n.video(ctx, t.VideoID),
		})
	}
	return out, nil
}

// Sent lists tips sent by the caller, newest first.
func (s *Service) Sent(ctx context.Context, caller authz.Caller, limit int) ([]*SentTip, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	tips, err := s.repo.ListSent(ctx, caller.UserID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	n := s.newNames()
	out := make([]*SentTip, 0, len(tips))
	for _, t := range tips {
		out = append(out, &SentTip{
			Tip:           t,
			RecipientName: n.user(ctx, t.ToUserID, "Unknown"),
			VideoTitle:    n.video(ctx, t.VideoID),
		})
	}
	return out, nil
}

// Stats aggregates completed tips received by a creator. Amounts are cents.
type Stats struct {
	TotalTips     int     `json:"total_tips"`
	TotalAmount   int64   `json:"total_amount"`
	AverageTip    float64 `json:"average_tip"`
	LargestTip    int64   `json:"largest_tip"`
	UniqueTippers int     `json:"unique_tippers"`
	ThisMonth     int64   `json:"this_month"`
	LastMonth     int64   `json:"last_month"`
}

// Stats summarizes completed tips; months are bucketed by tip creation in UTC.
func (s *Service) Stats(ctx context.Context, caller authz.Caller, userID string) (*Stats, error) {
	if err := s.requireOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	tips, err := s.repo.ListReceived(ctx, userID, StatusCompleted, 0)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	thisMonth := MonthKey(now)
	lastMonth := MonthKey(time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC))

	st := &Stats{TotalTips: len(tips)}
	tippers := make(map[string]struct{})
	for _, t := range tips {
		st.TotalAmount += t.Amount
		if t.Amount > st.LargestTip {
			st.LargestTip = t.Amount
		}
		tippers[t.FromUserID] = struct{}{}
		switch MonthKey(t.CreatedAt) {
		case thisMonth:
			st.ThisMonth += t.Amount
		case lastMonth:
			st.LastMonth += t.Amount
		}
	}
	st.UniqueTippers = len(tippers)
	if st.TotalTips > 0 {
		st.AverageTip = float64(st.TotalAmount) / float64(st.TotalTips)
	}
	return st, nil
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Earnings returns the creator's monthly earnings rows, newest first.
// An empty month returns every month.
func (s *Service) Earnings(ctx context.Context, caller authz.Caller, userID, month string) ([]*Earnings, error) {
	if err := s.requireOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	if month != "" && !monthPattern.MatchString(month) {
		return nil, apperr.Validation("month must be formatted as YYYY-MM")
	}
	return s.repo.ListEarnings(ctx, userID, month)
}
