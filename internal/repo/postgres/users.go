package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

const userColumns = `id, first_name, last_name, email, password_hash, role, subscription,
	parent_tag_id, country, company, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Subscription,
		&u.ParentTagID,
		&u.Country,
		&u.Company,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, p user.CreateParams) (user.User, error) {
	var u user.User

	err := observe(r.prom, "users.create", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `
			INSERT INTO users (first_name, last_name, email, password_hash, role, subscription, parent_tag_id, country, company)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING `+userColumns,
			p.FirstName, p.LastName, p.Email, p.PasswordHash, p.Role, p.Subscription, p.ParentTagID, p.Country, p.Company,
		))
		return e
	})

	if err != nil {
		if IsUniqueViolation(err, "users_email_key") {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg interface{}) (user.User, error) {
	var u user.User

	err := observe(r.prom, op, func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, query, arg))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id int64, req user.UpdateProfileRequest) (user.User, error) {
	var u user.User

	err := observe(r.prom, "users.update_profile", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET first_name = $2,
				last_name = $3,
				country = $4,
				company = $5,
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, req.FirstName, req.LastName, req.Country, req.Company,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

// buildUserListQuery mirrors buildTagSummaryQuery for the admin users table.
func buildUserListQuery(f user.ListFilter) (pageQuery, countQuery string, args []interface{}) {
	where := ""
	if s := strings.TrimSpace(f.Search); s != "" {
		where = " WHERE (first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1)"
		args = append(args, utils.ContainsPattern(s))
	}

	pageQuery = `SELECT ` + userColumns + `, COUNT(*) OVER() AS total FROM users` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	countQuery = `SELECT COUNT(*) FROM users` + where

	return pageQuery, countQuery, args
}

// List pages users newest first; Search matches first name, last name or email.
func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	pageQuery, countQuery, args := buildUserListQuery(f)

	output := make([]user.User, 0, f.Limit)
	total := 0

	err := observe(r.prom, "users.list", func() error {
		rows, err := r.pool.Query(ctx, pageQuery, append(args, f.Limit, f.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u user.User
			if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.Subscription,
				&u.ParentTagID, &u.Country, &u.Company, &u.CreatedAt, &u.UpdatedAt, &total); err != nil {
				return err
			}
			output = append(output, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	if len(output) == 0 && f.Offset > 0 {
		err = observe(r.prom, "users.count", func() error {
			return r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return output, total, nil
}

// Delete removes a user; their tenders, pending tenders, messages and favorites cascade.
func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	return observe(r.prom, "users.delete", func() error {
		res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}
