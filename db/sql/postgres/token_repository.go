package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adeilh/taskdo/auth"
)

// TokenRepository implements auth.TokenStore on PostgreSQL. The unique
// index on user_id keeps at most one row per user.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository wraps an existing *sql.DB connection.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Get(ctx context.Context, userID string) (auth.SessionToken, error) {
	const query = `SELECT id, user_id, access_token, token_type, expires_at
                   FROM session_tokens WHERE user_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

func (r *TokenRepository) Create(ctx context.Context, token auth.SessionToken) (auth.SessionToken, error) {
	const query = `INSERT INTO session_tokens (id, user_id, access_token, token_type, expires_at)
                   VALUES ($1, $2, $3, $4, $5)`
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.AccessToken, token.TokenType, token.ExpiresAt)
	if err != nil {
		return auth.SessionToken{}, translateTokenError(err)
	}
	return token, nil
}

func (r *TokenRepository) Update(ctx context.Context, tokenID string, token auth.SessionToken) (auth.SessionToken, error) {
	const query = `UPDATE session_tokens SET access_token = $2, token_type = $3, expires_at = $4
                   WHERE id = $1 RETURNING id, user_id, access_token, token_type, expires_at`
	updated, err := r.scanOne(r.db.QueryRowContext(ctx, query,
		tokenID, token.AccessToken, token.TokenType, token.ExpiresAt))
	if err != nil {
		return auth.SessionToken{}, err
	}
	return updated, nil
}

// UpsertIfValid reconciles a freshly issued token with the stored row
// inside one transaction: insert when absent, overwrite in place while
// the stored value still satisfies stillValid, otherwise leave the row
// unchanged. A lost concurrent insert retries once down the update
// branch.
func (r *TokenRepository) UpsertIfValid(ctx context.Context, token auth.SessionToken, stillValid func(string) bool) error {
	err := r.upsertOnce(ctx, token, stillValid)
	if errors.Is(err, auth.ErrTokenConflict) {
		return r.upsertOnce(ctx, token, stillValid)
	}
	return err
}

func (r *TokenRepository) upsertOnce(ctx context.Context, token auth.SessionToken, stillValid func(string) bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const lockQuery = `SELECT id, access_token FROM session_tokens WHERE user_id = $1 FOR UPDATE`
	var (
		rowID  string
		stored string
	)
	err = tx.QueryRowContext(ctx, lockQuery, token.UserID).Scan(&rowID, &stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if token.ID == "" {
			token.ID = uuid.NewString()
		}
		const insertQuery = `INSERT INTO session_tokens (id, user_id, access_token, token_type, expires_at)
                             VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(ctx, insertQuery,
			token.ID, token.UserID, token.AccessToken, token.TokenType, token.ExpiresAt); err != nil {
			return translateTokenError(err)
		}
	case err != nil:
		return translateTokenError(err)
	default:
		if stillValid != nil && !stillValid(stored) {
			return tx.Commit()
		}
		const updateQuery = `UPDATE session_tokens SET access_token = $2, token_type = $3, expires_at = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, updateQuery,
			rowID, token.AccessToken, token.TokenType, token.ExpiresAt); err != nil {
			return translateTokenError(err)
		}
	}
	return tx.Commit()
}

func (r *TokenRepository) scanOne(row *sql.Row) (auth.SessionToken, error) {
	var token auth.SessionToken
	err := row.Scan(&token.ID, &token.UserID, &token.AccessToken, &token.TokenType, &token.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.SessionToken{}, auth.ErrTokenNotFound
		}
		return auth.SessionToken{}, translateTokenError(err)
	}
	return token, nil
}

func translateTokenError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return auth.ErrTokenConflict
		case "22P02":
			return auth.ErrTokenNotFound
		}
	}
	return err
}
