package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
)

// DefaultListLimit is the page size for ListForCaller.
const DefaultListLimit = 50

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, p Payload) error
}

// Service implements Notifier and the notification read operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new notification service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Notify stores a notification for userID.
func (s *Service) Notify(ctx context.Context, userID string, p Payload) error {
	n := &Notification{
		UserID:  userID,
		Type:    p.Type(),
		Title:   p.title(),
		Message: p.message(),
		Payload: p,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "notification created", "user_id", userID, "type", n.Type)
	return nil
}

// ListForCaller returns the caller's notifications newest first.
func (s *Service) ListForCaller(ctx context.Context, caller authz.Caller, limit int, unreadOnly bool) ([]*Notification, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	items, err := s.repo.List(ctx, caller.UserID, limit, unreadOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Notification{}
	}
	return items, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *Service) MarkRead(ctx context.Context, caller authz.Caller, id string) error {
	if err := caller.Require(); err != nil {
		return err
	}
	n, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotificationNotFound) {
		return apperr.NotFound("notification not found")
	}
	if err != nil {
		return err
	}
	if err := caller.RequireSelf(n.UserID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, id)
}

// NotifyBestEffort delivers p and logs delivery failures instead of returning them.
func NotifyBestEffort(ctx context.Context, n Notifier, logger *slog.Logger, userID string, p Payload) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, p); err != nil {
		logger.WarnContext(ctx, "failed to deliver notification", "user_id", userID, "type", p.Type(), "error", err)
	}
}
