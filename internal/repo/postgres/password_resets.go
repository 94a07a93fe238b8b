package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/passwordreset"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PasswordResetsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewPasswordResetsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PasswordResetsRepo {
	return &PasswordResetsRepo{pool: pool, prom: prom}
}

func (r *PasswordResetsRepo) Create(ctx context.Context, t passwordreset.Token) error {
	return observe(r.prom, "password_resets.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, created_at)
			VALUES ($1,$2,$3,$4)`,
			t.TokenHash, t.UserID, t.ExpiresAt, t.CreatedAt,
		)
		if isForeignKeyViolation(err) {
			return user.ErrNotFound
		}
		return err
	})
}

// Consume spends a reset token: the password changes and every token of the user is
// deleted in one transaction. An expired token is deleted and ErrExpired returned.
func (r *PasswordResetsRepo) Consume(ctx context.Context, tokenHash, passwordHash string, now time.Time) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Locks the row so a token cannot be spent twice concurrently
	var t passwordreset.Token

	err = observe(r.prom, "password_resets.lock", func() error {
		return tx.QueryRow(ctx, `
			SELECT token_hash, user_id, expires_at, created_at
			FROM password_reset_tokens
			WHERE token_hash = $1
			FOR UPDATE`, tokenHash,
		).Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = passwordreset.ErrNotFound
		}
		return
	}

	if t.ExpiredAt(now) {
		if _, err = tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE token_hash = $1`, tokenHash); err != nil {
			return
		}
		if err = tx.Commit(ctx); err != nil {
			return
		}
		return passwordreset.ErrExpired
	}

	err = observe(r.prom, "users.update_password", func() error {
		res, e := tx.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, t.UserID, passwordHash)
		if e != nil {
			return e
		}
		if res.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return
	}

	err = observe(r.prom, "password_resets.delete_for_user", func() error {
		_, e := tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, t.UserID)
		return e
	})
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}
