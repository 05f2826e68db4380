package analytics

import (
	"context"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
)

// Period selects the window and granularity of PerformanceTrends.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// TrendPoint is one point of a trend series. Date is YYYY-MM-DD for daily
// points and YYYY-MM for monthly points.
type TrendPoint struct {
	Date           string  `json:"date"`
	Views          int64   `json:"views"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	Shares         int64   `json:"shares"`
	Tips           int64   `json:"tips"`
	EngagementRate float64 `json:"engagement_rate"`
	Followers      int64   `json:"followers"`
}

// TrendSummary compares the last two points of a series. Percent changes
// are 0 when the previous value is 0; EngagementChange is in points.
type TrendSummary struct {
	ViewsChange      float64 `json:"views_change"`
	LikesChange      float64 `json:"likes_change"`
	EngagementChange float64 `json:"engagement_change"`
	FollowersChange  int64   `json:"followers_change"`
}

// PerformanceTrends is a trend series plus its summary.
type PerformanceTrends struct {
	Period  Period        `json:"period"`
	Trends  []TrendPoint  `json:"trends"`
	Summary *TrendSummary `json:"summary"`
}

// PerformanceTrends reads daily rollup rows for the period. Week and month
// return daily points; year groups the rows by calendar month.
func (s *Service) PerformanceTrends(ctx context.Context, caller authz.Caller, userID string, p Period) (*PerformanceTrends, error) {
	if err := s.authorizeOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	var lookback TimeRange
	switch p {
	case PeriodWeek:
		lookback = RangeWeek
	case PeriodMonth:
		lookback = RangeMonth
	case PeriodYear:
		lookback = RangeYear
	default:
		return nil, apperr.Validation("unknown period %q", p)
	}

	d, _ := lookback.Lookback()
	since := DateKey(s.now().In(s.loc).Add(-d))
	rows, err := s.store.ListCreatorStats(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	var points []TrendPoint
	if p == PeriodYear {
		points = monthlyPoints(rows)
	} else {
		points = make([]TrendPoint, 0, len(rows))
		for _, r := range rows {
			points = append(points, TrendPoint{
				Date:           r.Date,
				Views:          r.TotalViews,
				Likes:          r.TotalLikes,
				Comments:       r.TotalComments,
				Shares:         r.TotalShares,
				Tips:           r.TotalTips,
				EngagementRate: r.AvgEngagementRate,
				Followers:      r.NewFollowers,
			})
		}
	}
	return &PerformanceTrends{Period: p, Trends: points, Summary: summarize(points)}, nil
}

// monthlyPoints sums date-ordered daily rows into one point per month and
// recomputes engagement rate from the sums.
func monthlyPoints(rows []*CreatorStats) []TrendPoint {
	points := []TrendPoint{}
	for _, r := range rows {
		month := r.Date[:7]
		if len(points) == 0 || points[len(points)-1].Date != month {
			points = append(points, TrendPoint{Date: month})
		}
		pt := &points[len(points)-1]
		pt.Views += r.TotalViews
		pt.Likes += r.TotalLikes
		pt.Comments += r.TotalComments
		pt.Shares += r.TotalShares
		pt.Tips += r.TotalTips
		pt.Followers += r.NewFollowers
	}
	for i := range points {
		pt := &points[i]
		pt.EngagementRate = EngagementRate(pt.Likes+pt.Comments+pt.Shares, pt.Views)
	}
	return points
}

func percentChange(prev, latest int64) float64 {
	if prev == 0 {
		return 0
	}
	return float64(latest-prev) / float64(prev) * 100
}

func summarize(points []TrendPoint) *TrendSummary {
	if len(points) < 2 {
		return nil
	}
	prev, latest := points[len(points)-2], points[len(points)-1]
	return &TrendSummary{
		ViewsChange:      percentChange(prev.Views, latest.Views),
		LikesChange:      percentChange(prev.Likes, latest.Likes),
		EngagementChange: latest.EngagementRate - prev.EngagementRate,
		FollowersChange:  latest.Followers - prev.Followers,
	}
}
