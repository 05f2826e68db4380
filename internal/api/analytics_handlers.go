package api

import (
	"net/http"

	"github.com/onnwee/reelcast/internal/analytics"
)

// AnalyticsHandlers serves event ingestion and creator dashboards.
type AnalyticsHandlers struct {
	svc *analytics.Service
}

// NewAnalyticsHandlers creates a new AnalyticsHandlers instance.
func NewAnalyticsHandlers(svc *analytics.Service) *AnalyticsHandlers {
	return &AnalyticsHandlers{svc: svc}
}

type trackViewRequest struct {
	VideoID       string                  `json:"video_id" validate:"required"`
	WatchDuration *float64                `json:"watch_duration,omitempty" validate:"omitempty,gte=0"`
	Demographics  *analytics.Demographics `json:"demographics,omitempty"`
}

// TrackView handles POST /v1/analytics/views.
func (h *AnalyticsHandlers) TrackView(w http.ResponseWriter, r *http.Request) {
	var req trackViewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	err := h.svc.TrackView(r.Context(), callerFrom(r), analytics.ViewInput{
		VideoID:       req.VideoID,
		WatchDuration: req.WatchDuration,
		Demographics:  req.Demographics,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type trackEngagementRequest struct {
	VideoID   string `json:"video_id" validate:"required"`
	EventType string `json:"event_type" validate:"required"`
	Amount    int64  `json:"amount,omitempty" validate:"gte=0"`
}

// TrackEngagement handles POST /v1/analytics/engagements.
func (h *AnalyticsHandlers) TrackEngagement(w http.ResponseWriter, r *http.Request) {
	var req trackEngagementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteAppError(w, r, err)
		return
	}
	err := h.svc.TrackEngagement(r.Context(), callerFrom(r), analytics.EngagementInput{
		VideoID:   req.VideoID,
		EventType: analytics.EventType(req.EventType),
		Amount:    req.Amount,
	})
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatorAnalytics handles GET /v1/creators/{userId}/analytics?range=week.
func (h *AnalyticsHandlers) CreatorAnalytics(w http.ResponseWriter, r *http.Request) {
	tr := analytics.TimeRange(r.URL.Query().Get("range"))
	if tr == "" {
		tr = analytics.RangeWeek
	}
	res, err := h.svc.CreatorAnalytics(r.Context(), callerFrom(r), r.PathValue("userId"), tr)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Demographics handles GET /v1/creators/{userId}/demographics.
func (h *AnalyticsHandlers) Demographics(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AudienceDemographics(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// BestTimes handles GET /v1/creators/{userId}/best-times.
func (h *AnalyticsHandlers) BestTimes(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.BestTimeToPost(r.Context(), callerFrom(r), r.PathValue("userId"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Trends handles GET /v1/creators/{userId}/trends?period=week.
func (h *AnalyticsHandlers) Trends(w http.ResponseWriter, r *http.Request) {
	p := analytics.Period(r.URL.Query().Get("period"))
	if p == "" {
		p = analytics.PeriodWeek
	}
	res, err := h.svc.PerformanceTrends(r.Context(), callerFrom(r), r.PathValue("userId"), p)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
