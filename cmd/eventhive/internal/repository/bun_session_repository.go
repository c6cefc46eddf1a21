package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/uptrace/bun"
)

// BunSessionRepository stores login sessions. Only the SHA-256 of the cookie
// token is persisted.
type BunSessionRepository struct {
	db *bun.DB
}

// NewBunSessionRepository creates a new Bun-based session repository
func NewBunSessionRepository(db *bun.DB) *BunSessionRepository {
	return &BunSessionRepository{db: db}
}

// Create inserts a new session
func (r *BunSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if _, err := r.db.NewInsert().Model(session).Exec(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByTokenHash loads a session with its user. Expired and revoked sessions
// are returned as-is; the caller decides whether they are still valid.
func (r *BunSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	session := new(models.Session)
	err := r.db.NewSelect().
		Model(session).
		Relation("User").
		Where("s.token_hash = ?", tokenHash).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return session, nil
}

// UpdateLastUsed records activity on a session.
func (r *BunSessionRepository) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, "last_used_at", at.UTC())
}

// Revoke ends a session before its expiry (logout).
func (r *BunSessionRepository) Revoke(ctx context.Context, id string) error {
	return r.set(ctx, id, "revoked", true)
}

func (r *BunSessionRepository) set(ctx context.Context, id, column string, value any) error {
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session %s: %w", column, err)
	}
	return nil
}

// DeleteStale removes sessions that can no longer authenticate: those expired
// at now and those revoked by logout. It returns the number removed.
func (r *BunSessionRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		WhereOr("expires_at <= ?", now.UTC()).
		WhereOr("revoked = ?", true).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return n, nil
}
