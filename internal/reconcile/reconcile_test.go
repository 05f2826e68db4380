package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/reelcast/internal/social"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/video"
)

func TestRun_CorrectsDrift(t *testing.T) {
	ctx := context.Background()
	users := user.NewInMemoryRepository()
	videos := video.NewInMemoryRepository()
	rel := social.NewInMemoryRepository()

	for _, u := range []*user.User{
		{ID: "alice", Username: "alice", FollowerCount: 7, VideoCount: 0},
		{ID: "bob", Username: "bob"},
	} {
		if err := users.Insert(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	v := &video.Video{UserID: "alice", LikeCount: 0, CommentCount: 5}
	_ = videos.Insert(ctx, v)
	deleted := &video.Video{UserID: "alice", IsDeleted: true}
	_ = videos.Insert(ctx, deleted)

	_ = rel.InsertFollow(ctx, &social.Follow{FollowerID: "bob", FollowingID: "alice"})
	_ = rel.InsertLike(ctx, &social.Like{UserID: "bob", VideoID: v.ID})

	res, err := New(users, videos, rel, Config{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// alice, bob and alice's live video were all off.
	if res.Users != 2 || res.Corrected != 3 || res.Failed != 0 {
		t.Errorf("unexpected result %s", res)
	}

	alice, _ := users.GetByID(ctx, "alice")
	if alice.FollowerCount != 1 || alice.VideoCount != 1 {
		t.Errorf("unexpected alice counters %+v", alice)
	}
	bob, _ := users.GetByID(ctx, "bob")
	if bob.FollowingCount != 1 {
		t.Errorf("expected bob following 1, got %d", bob.FollowingCount)
	}
	got, _ := videos.GetByID(ctx, v.ID)
	if got.LikeCount != 1 || got.CommentCount != 0 {
		t.Errorf("unexpected video counters like=%d comment=%d", got.LikeCount, got.CommentCount)
	}

	// A second run finds nothing to fix.
	res, _ = New(users, videos, rel, Config{Concurrency: 1}).Run(ctx)
	if res.Corrected != 0 {
		t.Errorf("expected no corrections on rerun, got %s", res)
	}
}

type brokenCounts struct{ *social.InMemoryRepository }

func (brokenCounts) CountFollowers(ctx context.Context, userID string) (int64, error) {
	return 0, errors.New("db down")
}

func TestRun_CountsFailures(t *testing.T) {
	ctx := context.Background()
	users := user.NewInMemoryRepository()
	_ = users.Insert(ctx, &user.User{ID: "alice", Username: "alice"})

	res, err := New(users, video.NewInMemoryRepository(), brokenCounts{social.NewInMemoryRepository()}, Config{}).Run(ctx)
	if err != nil {
		t.Fatalf("per-user failures must not fail the run: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("expected 1 failure, got %s", res)
	}
}
