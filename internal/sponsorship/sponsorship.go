// Package sponsorship records creators' acceptance of the sponsorship guidelines.
package sponsorship

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/user"
)

// DefaultVersion is the guidelines version used when none is configured.
const DefaultVersion = "1.0"

// Agreement is one acceptance of a guidelines version. Agreements are append-only.
type Agreement struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Version    string    `json:"version"`
	AcceptedAt time.Time `json:"accepted_at"`
	IPAddress  string    `json:"ip_address,omitempty"`
}

// Status reports whether a user accepted the current guidelines.
type Status struct {
	HasAccepted bool       `json:"has_accepted"`
	Version     string     `json:"version,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
}

// Service implements guideline acceptance.
type Service struct {
	repo           Repository
	users          user.Repository
	currentVersion string
	logger         *slog.Logger
	now            func() time.Time
}

// NewService creates a sponsorship service. An empty currentVersion means DefaultVersion.
func NewService(repo Repository, users user.Repository, currentVersion string, logger *slog.Logger) *Service {
	if currentVersion == "" {
		currentVersion = DefaultVersion
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, users: users, currentVersion: currentVersion, logger: logger, now: time.Now}
}

// CurrentVersion returns the guidelines version users must accept.
func (s *Service) CurrentVersion() string {
	return s.currentVersion
}

func (s *Service) requireOwner(ctx context.Context, caller authz.Caller, userID string) error {
	if err := caller.Require(); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return caller.RequireSelf(userID)
}

// Accept records that userID accepted version. It reports false when the
// latest agreement already has that version. An empty version means the
// current one.
func (s *Service) Accept(ctx context.Context, caller authz.Caller, userID, version, ip string) (bool, error) {
	if err := s.requireOwner(ctx, caller, userID); err != nil {
		return false, err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = s.currentVersion
	}
	if len(version) > 20 {
		return false, apperr.Validation("version is too long")
	}

	latest, err := s.repo.Latest(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoAgreement) {
		return false, err
	}
	if latest != nil && latest.Version == version {
		return false, nil
	}

	a := &Agreement{UserID: userID, Version: version, AcceptedAt: s.now(), IPAddress: ip}
	if err := s.repo.Insert(ctx, a); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "sponsorship guidelines accepted", "user_id", userID, "version", version)
	return true, nil
}

// HasAccepted reports whether the latest agreement of userID matches the
// current version.
func (s *Service) HasAccepted(ctx context.Context, caller authz.Caller, userID string) (*Status, error) {
	if err := s.requireOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	latest, err := s.repo.Latest(ctx, userID)
	if errors.Is(err, ErrNoAgreement) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	at := latest.AcceptedAt
	return &Status{
		HasAccepted: latest.Version == s.currentVersion,
		Version:     latest.Version,
		AcceptedAt:  &at,
	}, nil
}
