package video

import (
	"context"
	"fmt"

	"github.com/onnwee/reelcast/internal/user"
)

// Counter names a denormalized counter on Video.
type Counter int

const (
	ViewCount Counter = iota
	LikeCount
	CommentCount
	ShareCount
	TipCount
)

func (c Counter) String() string {
	switch c {
	case ViewCount:
		return "view_count"
	case LikeCount:
		return "like_count"
	case CommentCount:
		return "comment_count"
	case ShareCount:
		return "share_count"
	case TipCount:
		return "tip_count"
	default:
		return "unknown"
	}
}

// AdjustCounter applies delta to one counter of a video with a read-modify-write,
// flooring the result at zero. Concurrent calls on the same video can lose updates.
func AdjustCounter(ctx context.Context, repo Repository, videoID string, c Counter, delta int64) error {
	v, err := repo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	switch c {
	case ViewCount:
		v.ViewCount = user.FloorAdd(v.ViewCount, delta)
	case LikeCount:
		v.LikeCount = user.FloorAdd(v.LikeCount, delta)
	case CommentCount:
		v.CommentCount = user.FloorAdd(v.CommentCount, delta)
	case ShareCount:
		v.ShareCount = user.FloorAdd(v.ShareCount, delta)
	case TipCount:
		v.TipCount = user.FloorAdd(v.TipCount, delta)
	default:
		return fmt.Errorf("unknown counter %d", c)
	}
	return repo.Update(ctx, v)
}
