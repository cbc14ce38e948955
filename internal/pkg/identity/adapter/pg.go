package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	identity "shorewatch/internal/pkg/identity/domain"
	"shorewatch/internal/pkg/identity/port"
	"shorewatch/pkg/apperrors"
)

const searchLimitMax = 20

// PgDirectory reads user profiles from the shared app_user table.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

var _ port.Directory = (*PgDirectory)(nil)

func (d *PgDirectory) GetByID(ctx context.Context, userID int64) (*identity.User, error) {
	var u identity.User
	err := d.pool.QueryRow(ctx, `
		SELECT id, uuid, username, full_name, email, COALESCE(avatar_url, ''), role, created_at
		FROM app_user
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.UUID, &u.Username, &u.FullName, &u.Email, &u.AvatarURL, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, apperrors.Unavailable("user lookup failed", err)
	}
	return &u, nil
}

func (d *PgDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM app_user WHERE id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return false, apperrors.Unavailable("user lookup failed", err)
	}
	return exists, nil
}

func (d *PgDirectory) Search(ctx context.Context, query string, excludeUserID int64, limit int) ([]identity.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidArg("search query must not be empty")
	}
	if limit <= 0 || limit > searchLimitMax {
		limit = searchLimitMax
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := d.pool.Query(ctx, `
		SELECT id, uuid, username, full_name, email, COALESCE(avatar_url, ''), role, created_at
		FROM app_user
		WHERE id <> $1
		  AND (username ILIKE $2 OR full_name ILIKE $2)
		ORDER BY username
		LIMIT $3
	`, excludeUserID, pattern, limit)
	if err != nil {
		return nil, apperrors.Unavailable("user search failed", err)
	}
	defer rows.Close()

	var out []identity.User
	for rows.Next() {
		var u identity.User
		if err := rows.Scan(&u.ID, &u.UUID, &u.Username, &u.FullName, &u.Email,
			&u.AvatarURL, &u.Role, &u.CreatedAt); err != nil {
			return nil, apperrors.Unavailable("user scan failed", err)
		}
		out = append(out, u)
	}
	if rows.Err() != nil {
		return nil, apperrors.Unavailable("user search failed", rows.Err())
	}
	return out, nil
}

// escapeLike neutralizes LIKE metacharacters in user input.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
