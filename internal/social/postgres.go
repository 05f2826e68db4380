package social

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/reelcast/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func noLimit(limit int) int {
	if limit <= 0 {
		return 10000
	}
	return limit
}

// exec runs a single-row write inside a DB span.
func (r *PostgresRepository) exec(ctx context.Context, table string, op tracing.DBOperation, query string, args ...any) (n int64, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, table, op)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return 0, ErrAlreadyExists
	}
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", op, table, err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) exists(ctx context.Context, table, query string, args ...any) (ok bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (`+query+`)`, args...).Scan(&ok)
	return ok, err
}

func (r *PostgresRepository) count(ctx context.Context, table, query string, args ...any) (n int64, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *PostgresRepository) InsertFollow(ctx context.Context, f *Follow) error {
	stamp(&f.CreatedAt)
	_, err := r.exec(ctx, "follows", tracing.DBOperationInsert,
		`INSERT INTO follows (follower_id, following_id, created_at) VALUES ($1, $2, $3)`,
		f.FollowerID, f.FollowingID, f.CreatedAt)
	return err
}

func (r *PostgresRepository) DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	n, err := r.exec(ctx, "follows", tracing.DBOperationDelete,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
	return n > 0, err
}

func (r *PostgresRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return r.exists(ctx, "follows",
		`SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
}

func (r *PostgresRepository) listFollows(ctx context.Context, column, userID string, limit int) (out []*Follow, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT follower_id, following_id, created_at FROM follows
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f Follow
		if err := rows.Scan(&f.FollowerID, &f.FollowingID, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListFollowers(ctx context.Context, userID string, limit int) ([]*Follow, error) {
	return r.listFollows(ctx, "following_id", userID, limit)
}

func (r *PostgresRepository) ListFollowing(ctx context.Context, userID string, limit int) ([]*Follow, error) {
	return r.listFollows(ctx, "follower_id", userID, limit)
}

func (r *PostgresRepository) CountFollowers(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, "follows", `SELECT COUNT(*) FROM follows WHERE following_id = $1`, userID)
}

func (r *PostgresRepository) CountFollowing(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, "follows", `SELECT COUNT(*) FROM follows WHERE follower_id = $1`, userID)
}

func (r *PostgresRepository) CountFollowersBetween(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	return r.count(ctx, "follows", `
		SELECT COUNT(*) FROM follows
		WHERE following_id = $1 AND created_at >= $2 AND created_at < $3`, userID, from, to)
}

func (r *PostgresRepository) InsertLike(ctx context.Context, l *Like) error {
	stamp(&l.CreatedAt)
	_, err := r.exec(ctx, "likes", tracing.DBOperationInsert,
		`INSERT INTO likes (user_id, video_id, created_at) VALUES ($1, $2, $3)`,
		l.UserID, l.VideoID, l.CreatedAt)
	return err
}

func (r *PostgresRepository) DeleteLike(ctx context.Context, userID, videoID string) (bool, error) {
	n, err := r.exec(ctx, "likes", tracing.DBOperationDelete,
		`DELETE FROM likes WHERE user_id = $1 AND video_id = $2`, userID, videoID)
	return n > 0, err
}

func (r *PostgresRepository) IsLiked(ctx context.Context, userID, videoID string) (bool, error) {
	return r.exists(ctx, "likes", `SELECT 1 FROM likes WHERE user_id = $1 AND video_id = $2`, userID, videoID)
}

func (r *PostgresRepository) ListLikes(ctx context.Context, videoID string, limit int) (out []*Like, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "likes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, video_id, created_at FROM likes
		WHERE video_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, videoID, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Like
		if err := rows.Scan(&l.UserID, &l.VideoID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountLikes(ctx context.Context, videoID string) (int64, error) {
	return r.count(ctx, "likes", `SELECT COUNT(*) FROM likes WHERE video_id = $1`, videoID)
}

func (r *PostgresRepository) InsertBookmark(ctx context.Context, b *Bookmark) error {
	stamp(&b.CreatedAt)
	_, err := r.exec(ctx, "bookmarks", tracing.DBOperationInsert,
		`INSERT INTO bookmarks (user_id, video_id, created_at) VALUES ($1, $2, $3)`,
		b.UserID, b.VideoID, b.CreatedAt)
	return err
}

func (r *PostgresRepository) DeleteBookmark(ctx context.Context, userID, videoID string) (bool, error) {
	n, err := r.exec(ctx, "bookmarks", tracing.DBOperationDelete,
		`DELETE FROM bookmarks WHERE user_id = $1 AND video_id = $2`, userID, videoID)
	return n > 0, err
}

func (r *PostgresRepository) IsBookmarked(ctx context.Context, userID, videoID string) (bool, error) {
	return r.exists(ctx, "bookmarks", `SELECT 1 FROM bookmarks WHERE user_id = $1 AND video_id = $2`, userID, videoID)
}

func (r *PostgresRepository) ListBookmarks(ctx context.Context, userID string, before time.Time, limit int) (out []*Bookmark, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "bookmarks", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var bound sql.NullTime
	if !before.IsZero() {
		bound = sql.NullTime{Time: before, Valid: true}
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, video_id, created_at FROM bookmarks
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3`, userID, bound, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.UserID, &b.VideoID, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

const commentColumns = `id, video_id, user_id, content, COALESCE(parent_id, ''), like_count, is_deleted, created_at, updated_at`

func scanComment(row interface{ Scan(...any) error }) (*Comment, error) {
	var c Comment
	if err := row.Scan(&c.ID, &c.VideoID, &c.UserID, &c.Content, &c.ParentID, &c.LikeCount, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) InsertComment(ctx context.Context, c *Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	stamp(&c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	_, err := r.exec(ctx, "comments", tracing.DBOperationInsert, `
		INSERT INTO comments (id, video_id, user_id, content, parent_id, like_count, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`,
		c.ID, c.VideoID, c.UserID, c.Content, c.ParentID, c.LikeCount, c.IsDeleted, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *PostgresRepository) GetComment(ctx context.Context, id string) (c *Comment, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	c, err = scanComment(r.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	return c, err
}

func (r *PostgresRepository) UpdateComment(ctx context.Context, c *Comment) error {
	c.UpdatedAt = time.Now()
	n, err := r.exec(ctx, "comments", tracing.DBOperationUpdate, `
		UPDATE comments SET content = $2, like_count = $3, is_deleted = $4, updated_at = $5
		WHERE id = $1`,
		c.ID, c.Content, c.LikeCount, c.IsDeleted, c.UpdatedAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *PostgresRepository) ListComments(ctx context.Context, videoID string) (out []*Comment, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE video_id = $1 AND is_deleted = FALSE
		ORDER BY created_at ASC, id ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountComments(ctx context.Context, videoID string) (int64, error) {
	return r.count(ctx, "comments", `SELECT COUNT(*) FROM comments WHERE video_id = $1 AND is_deleted = FALSE`, videoID)
}
