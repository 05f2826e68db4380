package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/reelcast/internal/idempotency"
	"github.com/onnwee/reelcast/internal/middleware"
)

// Handlers groups every handler set the router mounts. Upload and Webhook
// are optional; their routes are omitted when nil.
type Handlers struct {
	Analytics     *AnalyticsHandlers
	Schedule      *ScheduleHandlers
	Tips          *TipHandlers
	Sponsorship   *SponsorshipHandlers
	Users         *UserHandlers
	Videos        *VideoHandlers
	Social        *SocialHandlers
	Notifications *NotificationHandlers
	Upload        *UploadHandlers
	Webhook       *WebhookHandlers
	Jobs          *JobHandlers
	Health        *HealthHandlers
}

// RateLimits holds the per-route-group limits.
type RateLimits struct {
	Global   middleware.RateLimitPolicy
	Tracking middleware.RateLimitPolicy
	Tip      middleware.RateLimitPolicy
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Handlers       Handlers
	Tokens         middleware.TokenValidator
	InternalToken  string
	CORS           middleware.CORSConfig
	RateLimitStore middleware.RateLimitStore // nil disables rate limiting
	RateLimits     RateLimits
	Idempotency    idempotency.Store   // nil disables Idempotency-Key replay on POST /v1/tips
	Metrics        *middleware.Metrics // nil disables HTTP metrics
	MetricsHandler http.Handler        // served on /metrics when set
	ServiceName    string
	Tracing        bool
	Logger         *slog.Logger
}

// withDefaults replaces unset or invalid policies with the package defaults.
func (l RateLimits) withDefaults() RateLimits {
	d := middleware.DefaultPolicies()
	for name, p := range map[string]*middleware.RateLimitPolicy{
		middleware.PolicyGlobal:   &l.Global,
		middleware.PolicyTracking: &l.Tracking,
		middleware.PolicyTip:      &l.Tip,
	} {
		if p.Validate() != nil {
			*p = d[name]
		}
	}
	return l
}

// NewRouter builds the HTTP handler with all routes and the middleware chain
// RequestID -> Tracing -> Authenticate -> Logging -> HTTPMetrics -> CORS.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := cfg.Handlers
	mux := http.NewServeMux()

	limits := cfg.RateLimits.withDefaults()
	limit := func(p middleware.RateLimitPolicy, keys middleware.KeyFunc, next http.HandlerFunc) http.Handler {
		if cfg.RateLimitStore == nil {
			return next
		}
		return middleware.RateLimit(cfg.RateLimitStore, p, keys, cfg.Metrics)(next)
	}
	userKey := middleware.UserKeyFunc()
	v1 := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, limit(limits.Global, userKey, fn))
	}
	internal := middleware.RequireInternalToken(cfg.InternalToken)

	// Analytics ingestion has its own, higher limit.
	mux.Handle("POST /v1/analytics/views", limit(limits.Tracking, userKey, h.Analytics.TrackView))
	mux.Handle("POST /v1/analytics/engagements", limit(limits.Tracking, userKey, h.Analytics.TrackEngagement))

	v1("GET /v1/creators/{userId}/analytics", h.Analytics.CreatorAnalytics)
	v1("GET /v1/creators/{userId}/demographics", h.Analytics.Demographics)
	v1("GET /v1/creators/{userId}/best-times", h.Analytics.BestTimes)
	v1("GET /v1/creators/{userId}/trends", h.Analytics.Trends)

	v1("POST /v1/creators/{userId}/scheduled-posts", h.Schedule.Create)
	v1("GET /v1/creators/{userId}/scheduled-posts", h.Schedule.List)
	v1("GET /v1/creators/{userId}/scheduling-analytics", h.Schedule.Analytics)
	v1("POST /v1/scheduled-posts/{id}/cancel", h.Schedule.Cancel)
	v1("PATCH /v1/scheduled-posts/{id}", h.Schedule.Update)

	var sendTip http.Handler = http.HandlerFunc(h.Tips.Send)
	if cfg.Idempotency != nil {
		sendTip = middleware.Idempotency(middleware.IdempotencyConfig{
			Store:   cfg.Idempotency,
			Route:   "POST /v1/tips",
			TTL:     idempotency.DefaultTTL,
			Logger:  logger,
			Metrics: cfg.Metrics,
		})(sendTip)
	}
	mux.Handle("POST /v1/tips", limit(limits.Tip, userKey, sendTip.ServeHTTP))
	v1("GET /v1/tips/sent", h.Tips.Sent)
	v1("GET /v1/creators/{userId}/tips/received", h.Tips.Received)
	v1("GET /v1/creators/{userId}/tips/stats", h.Tips.Stats)
	v1("GET /v1/creators/{userId}/earnings", h.Tips.Earnings)

	v1("POST /v1/creators/{userId}/guidelines", h.Sponsorship.Accept)
	v1("GET /v1/creators/{userId}/guidelines", h.Sponsorship.Status)

	v1("GET /v1/users/me", h.Users.Me)
	v1("PUT /v1/users/me", h.Users.Upsert)
	v1("PUT /v1/users/me/profile-image", h.Users.UpdateProfileImage)
	v1("PUT /v1/users/me/settings", h.Users.UpdateSettings)
	v1("GET /v1/users/me/bookmarks", h.Social.Bookmarks)
	v1("GET /v1/users/search", h.Users.Search)
	v1("GET /v1/usernames/{username}", h.Users.ByUsername)
	v1("GET /v1/users/{userId}", h.Users.Get)
	v1("PUT /v1/users/{userId}/tips", h.Users.ToggleTips)
	v1("GET /v1/users/{userId}/videos", h.Videos.UserVideos)
	v1("POST /v1/users/{userId}/follow", h.Social.ToggleFollow)
	v1("GET /v1/users/{userId}/follow", h.Social.IsFollowing)
	v1("GET /v1/users/{userId}/followers", h.Social.Followers)
	v1("GET /v1/users/{userId}/following", h.Social.Following)

	v1("POST /v1/videos", h.Videos.Upload)
	v1("GET /v1/videos/feed", h.Videos.Feed)
	v1("GET /v1/videos/{id}", h.Videos.Get)
	v1("DELETE /v1/videos/{id}", h.Videos.Delete)
	v1("POST /v1/videos/{id}/views", h.Videos.RecordView)
	v1("POST /v1/videos/{id}/like", h.Social.ToggleLike)
	v1("GET /v1/videos/{id}/like", h.Social.IsLiked)
	v1("GET /v1/videos/{id}/likes", h.Social.VideoLikes)
	v1("POST /v1/videos/{id}/bookmark", h.Social.ToggleBookmark)
	v1("POST /v1/videos/{id}/comments", h.Social.AddComment)
	v1("GET /v1/videos/{id}/comments", h.Social.Comments)
	v1("DELETE /v1/comments/{id}", h.Social.DeleteComment)

	v1("GET /v1/notifications", h.Notifications.List)
	v1("POST /v1/notifications/{id}/read", h.Notifications.MarkRead)

	if h.Upload != nil {
		v1("POST /v1/uploads/sign", h.Upload.SignUpload)
	}

	mux.Handle("POST /internal/jobs/{name}", internal(http.HandlerFunc(h.Jobs.Run)))
	mux.Handle("POST /internal/tips/{id}/payment", internal(http.HandlerFunc(h.Tips.ProcessPayment)))
	// Stripe cannot send the internal token; the payload signature authenticates it.
	if h.Webhook != nil {
		mux.HandleFunc("POST /internal/stripe", h.Webhook.HandleStripeWebhook)
	}

	mux.HandleFunc("GET /health", h.Health.Health)
	mux.HandleFunc("GET /ready", h.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})

	var handler http.Handler = mux
	if len(cfg.CORS.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.CORS)(handler)
	}
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Authenticate(cfg.Tokens)(handler)
	if cfg.Tracing {
		handler = middleware.Tracing(cfg.ServiceName)(handler)
	}
	return middleware.RequestID(handler)
}
