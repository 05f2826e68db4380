// Package tip implements the creator tip ledger and monthly earnings.
package tip

import "time"

// Status is the payment status of a tip.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Amount bounds in cents, inclusive.
const (
	MinAmount int64 = 100
	MaxAmount int64 = 50000
)

// Tip is a payment from one user to a creator, optionally tied to a video.
type Tip struct {
	ID             string    `json:"id"`
	FromUserID     string    `json:"from_user_id"`
	ToUserID       string    `json:"to_user_id"`
	VideoID        string    `json:"video_id,omitempty"`
	Amount         int64     `json:"amount"` // cents
	Currency       string    `json:"currency"`
	Message        string    `json:"message,omitempty"`
	Status         Status    `json:"status"`
	StripeIntentID string    `json:"stripe_intent_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Earnings is one creator's ledger for a calendar month ("2006-01", UTC).
// All amounts are cents.
type Earnings struct {
	UserID              string    `json:"user_id"`
	Month               string    `json:"month"`
	ViewEarnings        int64     `json:"view_earnings"`
	EngagementEarnings  int64     `json:"engagement_earnings"`
	TipEarnings         int64     `json:"tip_earnings"`
	SponsorshipEarnings int64     `json:"sponsorship_earnings"`
	TotalEarnings       int64     `json:"total_earnings"`
	PaidOut             bool      `json:"paid_out"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// MonthKey formats t as an earnings month in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
