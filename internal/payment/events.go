package payment

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrEventAlreadyProcessed means an earlier delivery of the event holds the claim.
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")
	// ErrEventNotFound is returned for event ids that were never claimed.
	ErrEventNotFound = errors.New("webhook event not found")
)

// Outcome is what a claimed webhook event did.
type Outcome string

const (
	OutcomePending  Outcome = "pending"  // claimed, handler still running or crashed
	OutcomeSettled  Outcome = "settled"  // a tip moved out of pending
	OutcomeRejected Outcome = "rejected" // the tip was missing or already settled
	OutcomeIgnored  Outcome = "ignored"  // event type or intent unrelated to tips
)

// Event is one provider webhook delivery that this service has claimed.
type Event struct {
	EventID    string
	EventType  string
	TipID      string
	Outcome    Outcome
	ReceivedAt time.Time
	ResolvedAt *time.Time
}

// EventLog deduplicates webhook deliveries. Stripe delivers at least once,
// so a handler claims the event id first, then resolves it with the
// outcome, or releases it on a transient failure so the retry is handled.
type EventLog interface {
	Claim(ctx context.Context, eventID, eventType string) error
	Release(ctx context.Context, eventID string) error
	Resolve(ctx context.Context, eventID, tipID string, outcome Outcome) error
	Get(ctx context.Context, eventID string) (*Event, error)
}

// InMemoryEventLog is the EventLog used when no database is configured.
type InMemoryEventLog struct {
	mu     sync.Mutex
	events map[string]Event
	now    func() time.Time
}

// NewInMemoryEventLog creates an empty log.
func NewInMemoryEventLog() *InMemoryEventLog {
	return &InMemoryEventLog{events: make(map[string]Event), now: time.Now}
}

func (l *InMemoryEventLog) Claim(_ context.Context, eventID, eventType string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[eventID]; ok {
		return ErrEventAlreadyProcessed
	}
	l.events[eventID] = Event{EventID: eventID, EventType: eventType, Outcome: OutcomePending, ReceivedAt: l.now()}
	return nil
}

// Release drops a pending claim. Resolved events are kept.
func (l *InMemoryEventLog) Release(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.events[eventID]; ok && e.Outcome == OutcomePending {
		delete(l.events, eventID)
	}
	return nil
}

func (l *InMemoryEventLog) Resolve(_ context.Context, eventID, tipID string, outcome Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	at := l.now()
	e.TipID, e.Outcome, e.ResolvedAt = tipID, outcome, &at
	l.events[eventID] = e
	return nil
}

func (l *InMemoryEventLog) Get(_ context.Context, eventID string) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}
