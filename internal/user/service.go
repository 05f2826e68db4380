package user

import (
	"context"
	"errors"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/validate"
)

// DefaultSearchLimit is the number of users returned by Search when no limit is given.
const DefaultSearchLimit = 10

// ProfileInput holds the editable profile fields.
type ProfileInput struct {
	Username    string
	DisplayName string
	Bio         string
}

// Service implements profile operations.
type Service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Repository returns the underlying repository.
func (s *Service) Repository() Repository {
	return s.repo
}

// CreateOrUpdate creates the caller's profile or updates it when it already exists.
func (s *Service) CreateOrUpdate(ctx context.Context, caller authz.Caller, in ProfileInput) (*User, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}

	username, err := validate.Username(in.Username)
	if err != nil {
		return nil, apperr.Validation("invalid username: %v", err)
	}
	displayName, err := validate.DisplayName(in.DisplayName)
	if err != nil {
		return nil, apperr.Validation("invalid display name: %v", err)
	}
	bio, err := validate.Bio(in.Bio)
	if err != nil {
		return nil, apperr.Validation("invalid bio: %v", err)
	}

	existing, err := s.repo.GetByID(ctx, caller.UserID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		u := &User{
			ID:          caller.UserID,
			Username:    username,
			DisplayName: displayName,
			Bio:         bio,
			Settings:    DefaultSettings(),
		}
		if err := s.repo.Insert(ctx, u); err != nil {
			return nil, mapErr(err)
		}
		return u, nil
	case err != nil:
		return nil, err
	}

	existing.Username = username
	existing.DisplayName = displayName
	existing.Bio = bio
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, mapErr(err)
	}
	return existing, nil
}

// Current returns the caller's profile.
func (s *Service) Current(ctx context.Context, caller authz.Caller) (*User, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, caller.UserID)
	return u, mapErr(err)
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	return u, mapErr(err)
}

// ByUsername returns a profile by username.
func (s *Service) ByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	return u, mapErr(err)
}

// Search finds users whose username or display name contains term.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]*User, error) {
	if limit <= 0 || limit > 50 {
		limit = DefaultSearchLimit
	}
	if term == "" {
		return []*User{}, nil
	}
	users, err := s.repo.Search(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*User{}
	}
	return users, nil
}

// UpdateProfileImage sets the caller's profile image URL.
func (s *Service) UpdateProfileImage(ctx context.Context, caller authz.Caller, imageURL string) error {
	if err := caller.Require(); err != nil {
		return err
	}
	clean, err := validate.MediaURL(imageURL)
	if err != nil {
		return apperr.Validation("invalid profile image: %v", err)
	}
	u, err := s.repo.GetByID(ctx, caller.UserID)
	if err != nil {
		return mapErr(err)
	}
	u.ProfileImage = clean
	return s.repo.Update(ctx, u)
}

// ToggleTips enables or disables tips for userID. Owner only.
func (s *Service) ToggleTips(ctx context.Context, caller authz.Caller, userID string, enabled bool) error {
	if err := caller.RequireSelf(userID); err != nil {
		return err
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return mapErr(err)
	}
	u.Settings.AllowTips = enabled
	return s.repo.Update(ctx, u)
}

// UpdateSettings replaces the caller's settings.
func (s *Service) UpdateSettings(ctx context.Context, caller authz.Caller, settings Settings) (*User, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, mapErr(err)
	}
	u.Settings = settings
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// mapErr translates repository errors into operation errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, ErrUsernameTaken):
		return apperr.Validation("username already taken")
	default:
		return err
	}
}
