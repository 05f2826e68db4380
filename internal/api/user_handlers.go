package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/user"
)

// UserHandlers serves profile endpoints.
type UserHandlers struct {
	svc *user.Service
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(svc *user.Service) *UserHandlers {
	return &UserHandlers{svc: svc}
}

type profileRequest struct {
	Username    string `json:"username" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	Bio         string `json:"bio,omitempty"`
}

// Upsert handles PUT /v1/users/me.
func (h *UserHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	u, err := h.svc.CreateOrUpdate(r.Context(), callerFrom(r), user.ProfileInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// Me handles GET /v1/users/me.
func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Current(r.Context(), callerFrom(r))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// Get handles GET /v1/users/{userId}.
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// ByUsername handles GET /v1/usernames/{username}.
func (h *UserHandlers) ByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.ByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

// Search handles GET /v1/users/search?q=&limit=.
func (h *UserHandlers) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", user.DefaultSearchLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	users, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if users == nil {
		users = []*user.User{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users": users})
}

type profileImageRequest struct {
	URL string `json:"url" validate:"required"`
}

// UpdateProfileImage handles PUT /v1/users/me/profile-image.
func (h *UserHandlers) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	var req profileImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	if err := h.svc.UpdateProfileImage(r.Context(), callerFrom(r), req.URL); err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateSettings handles PUT /v1/users/me/settings. The body replaces all settings.
func (h *UserHandlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req user.Settings
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	u, err := h.svc.UpdateSettings(r.Context(), callerFrom(r), req)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u.Settings)
}

type toggleTipsRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ToggleTips handles PUT /v1/users/{userId}/tips.
func (h *UserHandlers) ToggleTips(w http.ResponseWriter, r *http.Request) {
	var req toggleTipsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	if err := h.svc.ToggleTips(r.Context(), callerFrom(r), r.PathValue("userId"), *req.Enabled); err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"allow_tips": *req.Enabled})
}
