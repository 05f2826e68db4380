package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/video"
)

const day = 24 * time.Hour

// TimeRange selects the lookback of CreatorAnalytics.
type TimeRange string

const (
	RangeDay   TimeRange = "day"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
)

// Lookback returns the fixed window of the range.
func (r TimeRange) Lookback() (time.Duration, bool) {
	switch r {
	case RangeDay:
		return day, true
	case RangeWeek:
		return 7 * day, true
	case RangeMonth:
		return 30 * day, true
	case RangeYear:
		return 365 * day, true
	}
	return 0, false
}

// DemographicsWindow is the lookback of AudienceDemographics.
const DemographicsWindow = 30 * day

// Config holds optional Service settings.
type Config struct {
	// Location is the time zone used for hour/day-of-week buckets and
	// rollup dates. Defaults to time.Local.
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service records analytics events and answers dashboard queries.
type Service struct {
	store  Store
	videos video.Repository
	users  user.Repository
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new analytics service.
func NewService(store Store, videos video.Repository, users user.Repository, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:  store,
		videos: videos,
		users:  users,
		loc:    cfg.Location,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// Store returns the underlying analytics store.
func (s *Service) Store() Store {
	return s.store
}

// Location returns the analytics time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ViewInput is the argument of TrackView.
type ViewInput struct {
	VideoID       string
	WatchDuration *float64
	Demographics  *Demographics
}

// EngagementInput is the argument of TrackEngagement.
type EngagementInput struct {
	VideoID   string
	EventType EventType
	Amount    int64 // tip cents
}

// counterFor maps an event type to the video counter it increments.
func counterFor(t EventType) (video.Counter, bool) {
	switch t {
	case EventView:
		return video.ViewCount, true
	case EventLike:
		return video.LikeCount, true
	case EventComment:
		return video.CommentCount, true
	case EventShare:
		return video.ShareCount, true
	case EventTip:
		return video.TipCount, true
	}
	return 0, false
}

// TrackView records a view event and increments the video's view count.
func (s *Service) TrackView(ctx context.Context, caller authz.Caller, in ViewInput) error {
	if in.WatchDuration != nil && *in.WatchDuration < 0 {
		return apperr.Validation("watch duration cannot be negative")
	}
	return s.record(ctx, caller, &Event{
		VideoID:       in.VideoID,
		EventType:     EventView,
		WatchDuration: in.WatchDuration,
		Demographics:  in.Demographics,
	})
}

// TrackEngagement records a like, comment, share, tip or watch_time event and
// increments the matching video counter.
func (s *Service) TrackEngagement(ctx context.Context, caller authz.Caller, in EngagementInput) error {
	if !in.EventType.Valid() || in.EventType == EventView {
		return apperr.Validation("unknown engagement type %q", in.EventType)
	}
	if in.Amount < 0 {
		return apperr.Validation("amount cannot be negative")
	}
	return s.record(ctx, caller, &Event{
		VideoID:   in.VideoID,
		EventType: in.EventType,
		Amount:    in.Amount,
	})
}

func (s *Service) record(ctx context.Context, caller authz.Caller, e *Event) error {
	if err := caller.Require(); err != nil {
		return err
	}
	v, err := s.videos.GetByID(ctx, e.VideoID)
	if errors.Is(err, video.ErrVideoNotFound) || (err == nil && v.IsDeleted) {
		return apperr.NotFound("video not found")
	}
	if err != nil {
		return err
	}

	now := s.now().In(s.loc)
	e.UserID = v.UserID
	e.ViewerID = caller.UserID
	e.Timestamp = now
	e.Hour = now.Hour()
	e.DayOfWeek = int(now.Weekday())

	if err := s.store.InsertEvent(ctx, e); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if c, ok := counterFor(e.EventType); ok {
		if err := video.AdjustCounter(ctx, s.videos, v.ID, c, 1); err != nil {
			return fmt.Errorf("increment %s: %w", c, err)
		}
	}
	return nil
}

// authorizeOwner checks that the caller is userID and that the user exists.
func (s *Service) authorizeOwner(ctx context.Context, caller authz.Caller, userID string) error {
	if err := caller.RequireSelf(userID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return nil
}

// CreatorAnalytics is the dashboard summary for one time range.
type CreatorAnalytics struct {
	TimeRange      TimeRange `json:"time_range"`
	TotalViews     int64     `json:"total_views"`
	TotalLikes     int64     `json:"total_likes"`
	TotalComments  int64     `json:"total_comments"`
	TotalShares    int64     `json:"total_shares"`
	TotalTips      int64     `json:"total_tips"`
	UniqueViewers  int64     `json:"unique_viewers"`
	TotalWatchTime float64   `json:"total_watch_time"`
	EngagementRate float64   `json:"engagement_rate"`
}

// Totals are event counts computed from a set of events.
type Totals struct {
	Views, Likes, Comments, Shares, Tips int64
	UniqueViewers                        int64
	WatchTime                            float64
}

// Engagements returns likes + comments + shares.
func (t Totals) Engagements() int64 {
	return t.Likes + t.Comments + t.Shares
}

// Summarize counts events by type, distinct viewers and view watch time.
func Summarize(events []*Event) Totals {
	var t Totals
	viewers := make(map[string]struct{})
	for _, e := range events {
		switch e.EventType {
		case EventView:
			t.Views++
			if e.WatchDuration != nil {
				t.WatchTime += *e.WatchDuration
			}
		case EventLike:
			t.Likes++
		case EventComment:
			t.Comments++
		case EventShare:
			t.Shares++
		case EventTip:
			t.Tips++
		}
		if e.ViewerID != "" {
			viewers[e.ViewerID] = struct{}{}
		}
	}
	t.UniqueViewers = int64(len(viewers))
	return t
}

// CreatorAnalytics aggregates a creator's events over a fixed lookback.
func (s *Service) CreatorAnalytics(ctx context.Context, caller authz.Caller, userID string, r TimeRange) (*CreatorAnalytics, error) {
	if err := s.authorizeOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	lookback, ok := r.Lookback()
	if !ok {
		return nil, apperr.Validation("unknown time range %q", r)
	}

	events, err := s.store.ListEvents(ctx, EventQuery{UserID: userID, Since: s.now().Add(-lookback)})
	if err != nil {
		return nil, err
	}
	t := Summarize(events)
	return &CreatorAnalytics{
		TimeRange:      r,
		TotalViews:     t.Views,
		TotalLikes:     t.Likes,
		TotalComments:  t.Comments,
		TotalShares:    t.Shares,
		TotalTips:      t.Tips,
		UniqueViewers:  t.UniqueViewers,
		TotalWatchTime: t.WatchTime,
		EngagementRate: EngagementRate(t.Engagements(), t.Views),
	}, nil
}

// AudienceDemographics holds frequency maps of viewer attributes.
type AudienceDemographics struct {
	Countries   map[string]int64 `json:"countries"`
	Regions     map[string]int64 `json:"regions"`
	DeviceTypes map[string]int64 `json:"device_types"`
	AgeRanges   map[string]int64 `json:"age_ranges"`
}

// AudienceDemographics buckets demographics of views from the last 30 days.
func (s *Service) AudienceDemographics(ctx context.Context, caller authz.Caller, userID string) (*AudienceDemographics, error) {
	if err := s.authorizeOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, EventQuery{
		UserID: userID,
		Since:  s.now().Add(-DemographicsWindow),
		Type:   EventView,
	})
	if err != nil {
		return nil, err
	}

	out := &AudienceDemographics{
		Countries:   map[string]int64{},
		Regions:     map[string]int64{},
		DeviceTypes: map[string]int64{},
		AgeRanges:   map[string]int64{},
	}
	bump := func(m map[string]int64, k string) {
		if k != "" {
			m[k]++
		}
	}
	for _, e := range events {
		if e.Demographics == nil {
			continue
		}
		bump(out.Countries, e.Demographics.Country)
		bump(out.Regions, e.Demographics.Region)
		bump(out.DeviceTypes, e.Demographics.DeviceType)
		bump(out.AgeRanges, e.Demographics.AgeRange)
	}
	return out, nil
}
