package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

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

const userColumns = `id, username, display_name, bio, profile_image, verified,
	follower_count, following_count, video_count,
	is_private, allow_messages, allow_comments, allow_tips,
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Bio, &u.ProfileImage, &u.Verified,
		&u.FollowerCount, &u.FollowingCount, &u.VideoCount,
		&u.Settings.IsPrivate, &u.Settings.AllowMessages, &u.Settings.AllowComments, &u.Settings.AllowTips,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *PostgresRepository) Insert(ctx context.Context, u *User) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Username, u.DisplayName, u.Bio, u.ProfileImage, u.Verified,
		u.FollowerCount, u.FollowingCount, u.VideoCount,
		u.Settings.IsPrivate, u.Settings.AllowMessages, u.Settings.AllowComments, u.Settings.AllowTips,
		u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (u *User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	u, err = scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (u *User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	u, err = scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (r *PostgresRepository) Update(ctx context.Context, u *User) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	u.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			username = $2, display_name = $3, bio = $4, profile_image = $5, verified = $6,
			follower_count = $7, following_count = $8, video_count = $9,
			is_private = $10, allow_messages = $11, allow_comments = $12, allow_tips = $13,
			updated_at = $14
		WHERE id = $1`,
		u.ID, u.Username, u.DisplayName, u.Bio, u.ProfileImage, u.Verified,
		u.FollowerCount, u.FollowingCount, u.VideoCount,
		u.Settings.IsPrivate, u.Settings.AllowMessages, u.Settings.AllowComments, u.Settings.AllowTips,
		u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
}

func (r *PostgresRepository) Search(ctx context.Context, term string, limit int) ([]*User, error) {
	pattern := "%" + likeEscaper.Replace(term) + "%"
	return r.query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username ILIKE $1 OR display_name ILIKE $1
		ORDER BY created_at, id
		LIMIT $2`, pattern, limit)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *PostgresRepository) query(ctx context.Context, q string, args ...any) (out []*User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
