package api

import (
	"net/http"
	"time"

	"github.com/onnwee/reelcast/internal/schedule"
)

// ScheduleHandlers serves the scheduled-post endpoints.
type ScheduleHandlers struct {
	svc *schedule.Service
}

// NewScheduleHandlers creates a new ScheduleHandlers instance.
func NewScheduleHandlers(svc *schedule.Service) *ScheduleHandlers {
	return &ScheduleHandlers{svc: svc}
}

type schedulePostRequest struct {
	VideoData    string    `json:"video_data" validate:"required"`
	ThumbnailURL string    `json:"thumbnail_url" validate:"required"`
	Duration     float64   `json:"duration" validate:"gt=0"`
	Description  string    `json:"description,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
}

// Create handles POST /v1/creators/{userId}/scheduled-posts.
func (h *ScheduleHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req schedulePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	post, err := h.svc.Create(r.Context(), callerFrom(r), schedule.CreateInput{
		UserID:       r.PathValue("userId"),
		VideoData:    req.VideoData,
		ThumbnailURL: req.ThumbnailURL,
		Duration:     req.Duration,
		Description:  req.Description,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, post)
}

// List handles GET /v1/creators/{userId}/scheduled-posts.
func (h *ScheduleHandlers) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Upcoming(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if posts == nil {
		posts = []*schedule.Post{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"posts": posts})
}

// Cancel handles POST /v1/scheduled-posts/{id}/cancel.
func (h *ScheduleHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": string(schedule.StatusCancelled)})
}

type updateScheduledPostRequest struct {
	Description  *string    `json:"description,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// Update handles PATCH /v1/scheduled-posts/{id}.
func (h *ScheduleHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req updateScheduledPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	post, err := h.svc.Update(r.Context(), callerFrom(r), r.PathValue("id"), schedule.UpdateInput{
		Description:  req.Description,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// Analytics handles GET /v1/creators/{userId}/scheduling-analytics.
func (h *ScheduleHandlers) Analytics(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SchedulingAnalytics(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
