package tip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/reelcast/internal/analytics"
	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/payment"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/video"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakePayments struct {
	mu     sync.Mutex
	params []payment.IntentParams
	err    error
}

func (f *fakePayments) CreatePaymentIntent(ctx context.Context, p payment.IntentParams) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.params = append(f.params, p)
	return &payment.Intent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: "requires_payment_method"}, nil
}

type fixture struct {
	svc    *Service
	repo   *InMemoryRepository
	users  *user.InMemoryRepository
	videos *video.InMemoryRepository
	events *analytics.InMemoryStore
	video  *video.Video
}

func newFixture(t *testing.T, payments payment.Client) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		repo:   NewInMemoryRepository(),
		users:  user.NewInMemoryRepository(),
		videos: video.NewInMemoryRepository(),
		events: analytics.NewInMemoryStore(),
	}
	seed := []*user.User{
		{ID: "creator", Username: "creator", DisplayName: "Creator", Settings: user.Settings{AllowTips: true}},
		{ID: "fan", Username: "fan", DisplayName: "Fan"},
		{ID: "closed", Username: "closed", DisplayName: "Closed"},
	}
	for _, u := range seed {
		if err := f.users.Insert(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	f.video = &video.Video{UserID: "creator", VideoURL: "https://cdn.example.com/v.mp4", Duration: 10, Description: "dance", Status: video.StatusReady}
	if err := f.videos.Insert(ctx, f.video); err != nil {
		t.Fatalf("seed video: %v", err)
	}

	tracker := analytics.NewService(f.events, f.videos, f.users, analytics.Config{Location: time.UTC, Now: func() time.Time { return now }})
	var cfg Config
	cfg.Tracker = tracker
	cfg.Now = func() time.Time { return now }
	if payments != nil {
		cfg.Payments = payments
	}
	f.svc = NewService(f.repo, f.users, f.videos, cfg)
	return f
}

func TestSend_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	fan := authz.User("fan")

	tests := []struct {
		name    string
		caller  authz.Caller
		in      SendInput
		wantErr error
	}{
		{"anonymous", authz.Anonymous(), SendInput{ToUserID: "creator", Amount: 500, Currency: "USD"}, apperr.ErrNotAuthenticated},
		{"zero", fan, SendInput{ToUserID: "creator", Amount: 0, Currency: "USD"}, apperr.ErrValidation},
		{"below minimum", fan, SendInput{ToUserID: "creator", Amount: 99, Currency: "USD"}, apperr.ErrValidation},
		{"above maximum", fan, SendInput{ToUserID: "creator", Amount: 50100, Currency: "USD"}, apperr.ErrValidation},
		{"bad currency", fan, SendInput{ToUserID: "creator", Amount: 500, Currency: "US"}, apperr.ErrValidation},
		{"self tip", authz.User("creator"), SendInput{ToUserID: "creator", Amount: 500, Currency: "USD"}, apperr.ErrValidation},
		{"missing recipient", fan, SendInput{ToUserID: "ghost", Amount: 500, Currency: "USD"}, apperr.ErrNotFound},
		{"tips disabled", fan, SendInput{ToUserID: "closed", Amount: 500, Currency: "USD"}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Send(ctx, tt.caller, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSend_Bounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for _, amount := range []int64{MinAmount, MaxAmount} {
		if _, err := f.svc.Send(ctx, authz.User("fan"), SendInput{ToUserID: "creator", Amount: amount, Currency: "usd"}); err != nil {
			t.Errorf("amount %d should be accepted: %v", amount, err)
		}
	}
}

func TestSend_WithVideoTracksEngagement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res, err := f.svc.Send(ctx, authz.User("fan"), SendInput{
		ToUserID: "creator", VideoID: f.video.ID, Amount: 500, Currency: "usd", Message: "love it",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, _ := f.repo.GetByID(ctx, res.TipID)
	if got.Status != StatusPending || got.Currency != "USD" {
		t.Errorf("unexpected tip %+v", got)
	}

	v, _ := f.videos.GetByID(ctx, f.video.ID)
	if v.TipCount != 1 {
		t.Errorf("expected tip count 1, got %d", v.TipCount)
	}
	events, _ := f.events.ListEvents(ctx, analytics.EventQuery{UserID: "creator", Type: analytics.EventTip})
	if len(events) != 1 || events[0].Amount != 500 || events[0].ViewerID != "fan" {
		t.Errorf("expected one tip event, got %+v", events)
	}
}

func TestSend_MissingVideoStillCreatesTip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res, err := f.svc.Send(ctx, authz.User("fan"), SendInput{ToUserID: "creator", VideoID: "gone", Amount: 500, Currency: "USD"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := f.repo.GetByID(ctx, res.TipID); err != nil {
		t.Errorf("tip should exist: %v", err)
	}
}

func TestSend_Stripe(t *testing.T) {
	ctx := context.Background()
	payments := &fakePayments{}
	f := newFixture(t, payments)

	res, err := f.svc.Send(ctx, authz.User("fan"), SendInput{ToUserID: "creator", Amount: 1500, Currency: "eur"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.ClientSecret != "pi_123_secret" {
		t.Errorf("expected client secret, got %q", res.ClientSecret)
	}
	if len(payments.params) != 1 || payments.params[0].Metadata["tip_id"] != res.TipID || payments.params[0].Amount != 1500 {
		t.Errorf("unexpected intent params %+v", payments.params)
	}
	got, _ := f.repo.GetByID(ctx, res.TipID)
	if got.StripeIntentID != "pi_123" {
		t.Errorf("expected intent id stored, got %q", got.StripeIntentID)
	}
}

// intentWriteFailingRepo loses every SetIntent write.
type intentWriteFailingRepo struct {
	*InMemoryRepository
}

func (r intentWriteFailingRepo) SetIntent(ctx context.Context, id, intentID string) error {
	return errors.New("connection reset")
}

func TestSend_IntentIDWriteFailureStillReturnsTip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	svc := NewService(intentWriteFailingRepo{f.repo}, f.users, f.videos, Config{
		Payments: &fakePayments{},
		Now:      func() time.Time { return now },
	})

	res, err := svc.Send(ctx, authz.User("fan"), SendInput{ToUserID: "creator", Amount: 700, Currency: "USD"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.TipID == "" || res.ClientSecret != "pi_123_secret" {
		t.Errorf("unexpected result %+v", res)
	}
	got, err := f.repo.GetByID(ctx, res.TipID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusPending || got.StripeIntentID != "" {
		t.Errorf("expected pending tip without intent id, got %+v", got)
	}

	// The webhook settles it by tip id and records the intent then.
	settled, err := svc.ProcessPayment(ctx, res.TipID, "pi_123", StatusCompleted)
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if settled.Status != StatusCompleted || settled.StripeIntentID != "pi_123" {
		t.Errorf("unexpected settled tip %+v", settled)
	}
}

func TestSend_StripeFailureMarksTipFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakePayments{err: errors.New("card network down")})

	if _, err := f.svc.Send(ctx, authz.User("fan"), SendInput{ToUserID: "creator", Amount: 500, Currency: "USD"}); err == nil {
		t.Fatal("expected error")
	}
	sent, _ := f.repo.ListSent(ctx, "fan", 0)
	if len(sent) != 1 || sent[0].Status != StatusFailed {
		t.Errorf("expected one failed tip, got %+v", sent)
	}
}

func TestProcessPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	fan := authz.User("fan")

	a, _ := f.svc.Send(ctx, fan, SendInput{ToUserID: "creator", Amount: 500, Currency: "USD"})
	b, _ := f.svc.Send(ctx, fan, SendInput{ToUserID: "creator", Amount: 250, Currency: "USD"})
	c, _ := f.svc.Send(ctx, fan, SendInput{ToUserID: "creator", Amount: 900, Currency: "USD"})

	if _, err := f.svc.ProcessPayment(ctx, a.TipID, "pi_a", StatusCompleted); err != nil {
		t.Fatalf("complete a: %v", err)
	}
	if _, err := f.svc.ProcessPayment(ctx, b.TipID, "pi_b", StatusCompleted); err != nil {
		t.Fatalf("complete b: %v", err)
	}
	if _, err := f.svc.ProcessPayment(ctx, c.TipID, "pi_c", StatusFailed); err != nil {
		t.Fatalf("fail c: %v", err)
	}

	if _, err := f.svc.ProcessPayment(ctx, a.TipID, "pi_a", StatusCompleted); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state on reprocess, got %v", err)
	}
	if _, err := f.svc.ProcessPayment(ctx, "missing", "pi", StatusCompleted); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := f.svc.ProcessPayment(ctx, c.TipID, "pi", StatusRefunded); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for refunded, got %v", err)
	}

	earnings, err := f.svc.Earnings(ctx, authz.User("creator"), "creator", "2026-03")
	if err != nil {
		t.Fatalf("Earnings: %v", err)
	}
	if len(earnings) != 1 || earnings[0].TipEarnings != 750 || earnings[0].TotalEarnings != 750 {
		t.Errorf("unexpected earnings %+v", earnings)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	seed := []struct {
		from   string
		amount int64
		status Status
		at     time.Time
	}{
		{"fan", 500, StatusCompleted, now.AddDate(0, 0, -1)},
		{"fan", 1000, StatusCompleted, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		{"other", 300, StatusCompleted, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"other", 9000, StatusPending, now},
		{"other", 9000, StatusFailed, now},
	}
	for _, s := range seed {
		tp := &Tip{FromUserID: s.from, ToUserID: "creator", Amount: s.amount, Currency: "USD", Status: s.status, CreatedAt: s.at}
		if err := f.repo.Insert(ctx, tp); err != nil {
			t.Fatal(err)
		}
	}

	st, err := f.svc.Stats(ctx, authz.User("creator"), "creator")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{
		TotalTips:     3,
		TotalAmount:   1800,
		AverageTip:    600,
		LargestTip:    1000,
		UniqueTippers: 2,
		ThisMonth:     500,
		LastMonth:     1000,
	}
	if *st != want {
		t.Errorf("got %+v, want %+v", *st, want)
	}

	if _, err := f.svc.Stats(ctx, authz.User("fan"), "creator"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestStats_Empty(t *testing.T) {
	f := newFixture(t, nil)
	st, err := f.svc.Stats(context.Background(), authz.User("creator"), "creator")
	if err != nil {
		t.Fatal(err)
	}
	if *st != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", *st)
	}
}

func TestReceivedAndSent_Names(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	older := &Tip{FromUserID: "ghost", ToUserID: "creator", Amount: 100, Currency: "USD", Status: StatusCompleted, CreatedAt: now.Add(-time.Hour)}
	newer := &Tip{FromUserID: "fan", ToUserID: "creator", VideoID: f.video.ID, Amount: 200, Currency: "USD", Status: StatusPending, CreatedAt: now}
	toGone := &Tip{FromUserID: "fan", ToUserID: "deleted", Amount: 300, Currency: "USD", Status: StatusPending, CreatedAt: now.Add(-2 * time.Hour)}
	for _, tp := range []*Tip{older, newer, toGone} {
		_ = f.repo.Insert(ctx, tp)
	}

	received, err := f.svc.Received(ctx, authz.User("creator"), "creator", 0)
	if err != nil {
		t.Fatalf("Received: %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 received tips, got %d", len(received))
	}
	if received[0].ID != newer.ID || received[0].SenderName != "Fan" || received[0].VideoTitle != "dance" {
		t.Errorf("unexpected first tip %+v", received[0])
	}
	if received[1].SenderName != "Anonymous" || received[1].VideoTitle != "Direct tip" {
		t.Errorf("unexpected second tip %+v", received[1])
	}

	sent, err := f.svc.Sent(ctx, authz.User("fan"), 0)
	if err != nil {
		t.Fatalf("Sent: %v", err)
	}
	if len(sent) != 2 || sent[0].RecipientName != "Creator" || sent[1].RecipientName != "Unknown" {
		t.Errorf("unexpected sent tips %+v", sent)
	}
}

func TestEarnings_BadMonth(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.Earnings(context.Background(), authz.User("creator"), "creator", "2026-13"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
