package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/social"
)

// SocialHandlers serves follow, like, bookmark, and comment endpoints.
type SocialHandlers struct {
	svc *social.Service
}

// NewSocialHandlers creates a new SocialHandlers instance.
func NewSocialHandlers(svc *social.Service) *SocialHandlers {
	return &SocialHandlers{svc: svc}
}

func profilesOrEmpty(p []social.Profile) []social.Profile {
	if p == nil {
		return []social.Profile{}
	}
	return p
}

// ToggleFollow handles POST /v1/users/{userId}/follow.
func (h *SocialHandlers) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ToggleFollow(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// IsFollowing handles GET /v1/users/{userId}/follow.
func (h *SocialHandlers) IsFollowing(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.IsFollowing(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, social.FollowState{Following: ok})
}

// Followers handles GET /v1/users/{userId}/followers?limit=.
func (h *SocialHandlers) Followers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", social.DefaultFollowLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	p, err := h.svc.Followers(r.Context(), r.PathValue("userId"), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users": profilesOrEmpty(p)})
}

// Following handles GET /v1/users/{userId}/following?limit=.
func (h *SocialHandlers) Following(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", social.DefaultFollowLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	p, err := h.svc.Following(r.Context(), r.PathValue("userId"), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users": profilesOrEmpty(p)})
}

// ToggleLike handles POST /v1/videos/{id}/like.
func (h *SocialHandlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ToggleLike(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// IsLiked handles GET /v1/videos/{id}/like.
func (h *SocialHandlers) IsLiked(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.IsLiked(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"liked": ok})
}

// VideoLikes handles GET /v1/videos/{id}/likes?limit=.
func (h *SocialHandlers) VideoLikes(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", social.DefaultLikeLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	p, err := h.svc.VideoLikes(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users": profilesOrEmpty(p)})
}

// ToggleBookmark handles POST /v1/videos/{id}/bookmark.
func (h *SocialHandlers) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	saved, err := h.svc.ToggleBookmark(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"bookmarked": saved})
}

// Bookmarks handles GET /v1/users/me/bookmarks?cursor=&limit=.
func (h *SocialHandlers) Bookmarks(w http.ResponseWriter, r *http.Request) {
	cursor, err := queryCursor(r)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", social.DefaultBookmarkLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	page, err := h.svc.Bookmarks(r.Context(), callerFrom(r), cursor, limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

type commentRequest struct {
	Content  string `json:"content" validate:"required"`
	ParentID string `json:"parent_id,omitempty"`
}

// AddComment handles POST /v1/videos/{id}/comments.
func (h *SocialHandlers) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	c, err := h.svc.AddComment(r.Context(), callerFrom(r), social.CommentInput{
		VideoID:  r.PathValue("id"),
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// Comments handles GET /v1/videos/{id}/comments.
func (h *SocialHandlers) Comments(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.Comments(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if cs == nil {
		cs = []social.CommentView{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"comments": cs})
}

// DeleteComment handles DELETE /v1/comments/{id}.
func (h *SocialHandlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComment(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
