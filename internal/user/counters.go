package user

import (
	"context"
	"fmt"
)

// Counter names a denormalized counter on User.
type Counter int

const (
	FollowerCount Counter = iota
	FollowingCount
	VideoCount
)

func (c Counter) String() string {
	switch c {
	case FollowerCount:
		return "follower_count"
	case FollowingCount:
		return "following_count"
	case VideoCount:
		return "video_count"
	default:
		return "unknown"
	}
}

// FloorAdd adds delta to v and clamps the result at zero.
func FloorAdd(v, delta int64) int64 {
	v += delta
	if v < 0 {
		return 0
	}
	return v
}

// AdjustCounter applies delta to one counter of a user with a read-modify-write.
// Concurrent adjustments of the same user can lose updates; the reconcile job
// recomputes counters from the relation tables.
func AdjustCounter(ctx context.Context, repo Repository, userID string, c Counter, delta int64) error {
	u, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	switch c {
	case FollowerCount:
		u.FollowerCount = FloorAdd(u.FollowerCount, delta)
	case FollowingCount:
		u.FollowingCount = FloorAdd(u.FollowingCount, delta)
	case VideoCount:
		u.VideoCount = FloorAdd(u.VideoCount, delta)
	default:
		return fmt.Errorf("unknown counter %d", c)
	}
	return repo.Update(ctx, u)
}
