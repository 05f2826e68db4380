package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/video"
)

// VideoHandlers serves video upload, lookup, and feed endpoints.
type VideoHandlers struct {
	svc *video.Service
}

// NewVideoHandlers creates a new VideoHandlers instance.
func NewVideoHandlers(svc *video.Service) *VideoHandlers {
	return &VideoHandlers{svc: svc}
}

type uploadVideoRequest struct {
	VideoURL     string       `json:"video_url" validate:"required"`
	ThumbnailURL string       `json:"thumbnail_url" validate:"required"`
	Duration     float64      `json:"duration" validate:"gt=0"`
	Description  string       `json:"description,omitempty"`
	Device       video.Device `json:"device"`
}

// Upload handles POST /v1/videos.
func (h *VideoHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	v, err := h.svc.Upload(r.Context(), callerFrom(r), video.UploadInput{
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		Duration:     req.Duration,
		Description:  req.Description,
		Device:       req.Device,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, v)
}

// Get handles GET /v1/videos/{id}.
func (h *VideoHandlers) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

// Delete handles DELETE /v1/videos/{id}.
func (h *VideoHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordViewRequest struct {
	WatchTime float64 `json:"watch_time" validate:"gte=0"`
	SessionID string  `json:"session_id" validate:"required"`
}

// RecordView handles POST /v1/videos/{id}/views. It stores the raw view
// row; aggregated analytics go through POST /v1/analytics/views.
func (h *VideoHandlers) RecordView(w http.ResponseWriter, r *http.Request) {
	var req recordViewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	if err := h.svc.RecordView(r.Context(), callerFrom(r), r.PathValue("id"), req.WatchTime, req.SessionID); err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Feed handles GET /v1/videos/feed?type=following|discover&cursor=&limit=.
func (h *VideoHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	cursor, err := queryCursor(r)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", video.DefaultFeedLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	feed := video.FeedType(r.URL.Query().Get("type"))
	if feed == "" {
		feed = video.FeedDiscover
	}
	page, err := h.svc.Feed(r.Context(), callerFrom(r), feed, cursor, limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

// UserVideos handles GET /v1/users/{userId}/videos?cursor=&limit=.
func (h *VideoHandlers) UserVideos(w http.ResponseWriter, r *http.Request) {
	cursor, err := queryCursor(r)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", video.DefaultUserVideoLimit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	page, err := h.svc.UserVideos(r.Context(), r.PathValue("userId"), cursor, limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}
