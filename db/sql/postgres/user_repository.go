package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/adeilh/taskdo/auth"
)

// UserRepository implements auth.UserDirectory on PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository wraps an existing *sql.DB connection.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	const query = `SELECT id, email, name, password_hash, confirmed, confirmed_at, created_at
                   FROM users WHERE email = $1`
	var (
		user        auth.User
		confirmedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Confirmed,
		&confirmedAt,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, auth.ErrNoSuchUser
		}
		return auth.User{}, translateUserError(err)
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		user.ConfirmedAt = &t
	}
	return user, nil
}

func (r *UserRepository) Insert(ctx context.Context, user auth.User) error {
	const query = `INSERT INTO users (id, email, name, password_hash, confirmed, confirmed_at, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var confirmedAt sql.NullTime
	if user.ConfirmedAt != nil {
		confirmedAt = sql.NullTime{Time: *user.ConfirmedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Confirmed, confirmedAt, user.CreatedAt)
	return translateUserError(err)
}

func (r *UserRepository) MarkConfirmed(ctx context.Context, email string, at time.Time) (auth.User, error) {
	const query = `UPDATE users SET confirmed = TRUE, confirmed_at = $2 WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, email, at)
	if err != nil {
		return auth.User{}, translateUserError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.User{}, auth.ErrNoSuchUser
	}
	return r.FindByEmail(ctx, email)
}

// ListConfirmed returns every confirmed user, for the daily reminder.
func (r *UserRepository) ListConfirmed(ctx context.Context) ([]auth.User, error) {
	const query = `SELECT id, email, name, password_hash, confirmed, confirmed_at, created_at
                   FROM users WHERE confirmed ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateUserError(err)
	}
	defer rows.Close()

	var out []auth.User
	for rows.Next() {
		var (
			user        auth.User
			confirmedAt sql.NullTime
		)
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.PasswordHash,
			&user.Confirmed,
			&confirmedAt,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		if confirmedAt.Valid {
			t := confirmedAt.Time
			user.ConfirmedAt = &t
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func translateUserError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return auth.ErrAlreadyRegistered
		case "22P02":
			return auth.ErrNoSuchUser
		}
	}
	return err
}
