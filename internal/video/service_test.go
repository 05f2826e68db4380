package video

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/user"
)

type staticFollowing map[string][]string

func (f staticFollowing) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

func newTestService(t *testing.T, following FollowingLister) (*Service, *InMemoryRepository, *user.InMemoryRepository) {
	t.Helper()
	ctx := context.Background()
	users := user.NewInMemoryRepository()
	for _, id := range []string{"alice", "bob", "carol"} {
		if err := users.Insert(ctx, &user.User{ID: id, Username: id, DisplayName: id}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	repo := NewInMemoryRepository()
	return NewService(repo, users, following, nil), repo, users
}

func validUpload() UploadInput {
	return UploadInput{
		VideoURL:     "https://cdn.example.com/v/clip.mp4",
		ThumbnailURL: "https://cdn.example.com/t/clip.jpg",
		Duration:     30,
		Description:  "first clip",
	}
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newTestService(t, nil)

	v, err := svc.Upload(ctx, authz.User("alice"), validUpload())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if v.Status != StatusReady {
		t.Errorf("expected ready status, got %s", v.Status)
	}

	u, _ := users.GetByID(ctx, "alice")
	if u.VideoCount != 1 {
		t.Errorf("expected video count 1, got %d", u.VideoCount)
	}
}

func TestService_Upload_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	tests := []struct {
		name    string
		caller  authz.Caller
		mutate  func(*UploadInput)
		wantErr error
	}{
		{"anonymous", authz.Anonymous(), func(*UploadInput) {}, apperr.ErrNotAuthenticated},
		{"no profile", authz.User("ghost"), func(*UploadInput) {}, apperr.ErrNotFound},
		{"zero duration", authz.User("alice"), func(in *UploadInput) { in.Duration = 0 }, apperr.ErrValidation},
		{"too long", authz.User("alice"), func(in *UploadInput) { in.Duration = 181 }, apperr.ErrValidation},
		{"bad url", authz.User("alice"), func(in *UploadInput) { in.VideoURL = "ftp://x/y" }, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validUpload()
			tt.mutate(&in)
			if _, err := svc.Upload(ctx, tt.caller, in); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newTestService(t, nil)
	v, _ := svc.Upload(ctx, authz.User("alice"), validUpload())

	if err := svc.Delete(ctx, authz.User("bob"), v.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Delete(ctx, authz.User("alice"), v.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, v.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected deleted video to be not found, got %v", err)
	}
	if err := svc.Delete(ctx, authz.User("alice"), v.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected second delete to be not found, got %v", err)
	}

	u, _ := users.GetByID(ctx, "alice")
	if u.VideoCount != 0 {
		t.Errorf("expected video count 0, got %d", u.VideoCount)
	}
}

func TestService_RecordView(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, nil)
	v, _ := svc.Upload(ctx, authz.User("alice"), validUpload())

	if err := svc.RecordView(ctx, authz.Anonymous(), v.ID, 5, ""); err != nil {
		t.Fatalf("anonymous view failed: %v", err)
	}
	if err := svc.RecordView(ctx, authz.User("bob"), v.ID, 25, "sess-1"); err != nil {
		t.Fatalf("authenticated view failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, v.ID)
	if got.ViewCount != 2 {
		t.Errorf("expected 2 views, got %d", got.ViewCount)
	}

	views, _ := repo.ListViews(ctx, v.ID)
	if len(views) != 1 {
		t.Fatalf("expected 1 raw view record, got %d", len(views))
	}
	if !views[0].Completed {
		t.Error("25s of a 30s video should count as completed")
	}
	if views[0].SessionID != "sess-1" {
		t.Errorf("expected session id to be stored, got %q", views[0].SessionID)
	}

	if err := svc.RecordView(ctx, authz.Anonymous(), "missing", 0, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Feed(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, staticFollowing{"carol": {"alice"}})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, owner := range []string{"alice", "bob", "alice"} {
		v, err := NewVideo(owner, validUpload())
		if err != nil {
			t.Fatalf("NewVideo: %v", err)
		}
		v.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_ = repo.Insert(ctx, v)
	}

	discover, err := svc.Feed(ctx, authz.Anonymous(), FeedDiscover, 0, 2)
	if err != nil {
		t.Fatalf("discover feed failed: %v", err)
	}
	if len(discover.Items) != 2 || !discover.HasMore {
		t.Fatalf("expected 2 items and more, got %d items hasMore=%v", len(discover.Items), discover.HasMore)
	}
	if discover.Items[0].Author == nil || discover.Items[0].Author.Username != "alice" {
		t.Errorf("expected newest item by alice with author attached")
	}

	next, _ := svc.Feed(ctx, authz.Anonymous(), FeedDiscover, discover.NextCursor, 2)
	if len(next.Items) != 1 || next.HasMore {
		t.Errorf("expected last page with 1 item, got %d hasMore=%v", len(next.Items), next.HasMore)
	}

	following, _ := svc.Feed(ctx, authz.User("carol"), FeedFollowing, 0, 10)
	if len(following.Items) != 2 {
		t.Errorf("expected 2 videos from followed users, got %d", len(following.Items))
	}

	none, _ := svc.Feed(ctx, authz.User("bob"), FeedFollowing, 0, 10)
	if len(none.Items) != 0 {
		t.Errorf("expected empty following feed, got %d", len(none.Items))
	}

	if _, err := svc.Feed(ctx, authz.Anonymous(), FeedFollowing, 0, 10); !errors.Is(err, apperr.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestIsCompleted(t *testing.T) {
	if IsCompleted(10, 0) {
		t.Error("zero duration can never be completed")
	}
	if !IsCompleted(8, 10) {
		t.Error("80% should count as completed")
	}
	if IsCompleted(7.9, 10) {
		t.Error("below 80% should not count as completed")
	}
}
