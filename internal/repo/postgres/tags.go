package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TagsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTagsRepo(pool *pgxpool.Pool, prom *observability.Prom) *TagsRepo {
	return &TagsRepo{pool: pool, prom: prom}
}

// All returns every tag ordered by name.
func (r *TagsRepo) All(ctx context.Context) ([]tag.Tag, error) {
	out := make([]tag.Tag, 0)

	err := observe(r.prom, "tags.all", func() error {
		rows, err := r.pool.Query(ctx, `SELECT id, name, parent_id, created_at FROM tags ORDER BY name ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t tag.Tag
			if err := rows.Scan(&t.ID, &t.Name, &t.ParentID, &t.CreatedAt); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *TagsRepo) GetByID(ctx context.Context, id int64) (tag.Tag, error) {
	var t tag.Tag

	err := observe(r.prom, "tags.get", func() error {
		return r.pool.QueryRow(ctx, `SELECT id, name, parent_id, created_at FROM tags WHERE id = $1`, id).
			Scan(&t.ID, &t.Name, &t.ParentID, &t.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tag.Tag{}, tag.ErrNotFound
		}
		return tag.Tag{}, err
	}

	return t, nil
}

// placeParent locks parentID and checks that self (nil on create) may sit under it.
// Self must already be locked by the caller, so its child count cannot move.
func (r *TagsRepo) placeParent(ctx context.Context, tx pgx.Tx, selfID, parentID *int64) error {
	if parentID == nil {
		return nil
	}

	var parent tag.Tag
	err := observe(r.prom, "tags.parent.lock", func() error {
		return tx.QueryRow(ctx, `SELECT id, name, parent_id, created_at FROM tags WHERE id = $1 FOR SHARE`, *parentID).
			Scan(&parent.ID, &parent.Name, &parent.ParentID, &parent.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tag.ErrParentNotFound
		}
		return err
	}

	children := 0
	if selfID != nil {
		err = observe(r.prom, "tags.child_count", func() error {
			return tx.QueryRow(ctx, `SELECT COUNT(*) FROM tags WHERE parent_id = $1`, *selfID).Scan(&children)
		})
		if err != nil {
			return err
		}
	}

	return tag.ValidateParent(selfID, &parent, children)
}

// Create holds a share lock on the parent until commit, so the parent cannot
// become a subcategory underneath the new tag.
func (r *TagsRepo) Create(ctx context.Context, name string, parentID *int64) (t tag.Tag, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err = r.placeParent(ctx, tx, nil, parentID); err != nil {
		return tag.Tag{}, err
	}

	err = observe(r.prom, "tags.create", func() error {
		return tx.QueryRow(ctx, `
			INSERT INTO tags (name, parent_id) VALUES ($1, $2)
			RETURNING id, name, parent_id, created_at`, name, parentID,
		).Scan(&t.ID, &t.Name, &t.ParentID, &t.CreatedAt)
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			err = tag.ErrParentNotFound
		}
		return tag.Tag{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return tag.Tag{}, err
	}
	return t, nil
}

// Update locks the tag and its new parent, and re-parents only if the
// hierarchy stays two levels deep.
func (r *TagsRepo) Update(ctx context.Context, id int64, name string, parentID *int64) (t tag.Tag, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// both rows, in id order, so two crossing re-parents queue instead of deadlocking
	found := false
	err = observe(r.prom, "tags.update.lock", func() error {
		rows, err := tx.Query(ctx, `SELECT id FROM tags WHERE id = $1 OR id = $2 ORDER BY id FOR UPDATE`, id, parentID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var locked int64
			if err := rows.Scan(&locked); err != nil {
				return err
			}
			found = found || locked == id
		}
		return rows.Err()
	})
	if err != nil {
		return tag.Tag{}, err
	}
	if !found {
		return tag.Tag{}, tag.ErrNotFound
	}

	if err = r.placeParent(ctx, tx, &id, parentID); err != nil {
		return tag.Tag{}, err
	}

	err = observe(r.prom, "tags.update", func() error {
		return tx.QueryRow(ctx, `
			UPDATE tags SET name = $2, parent_id = $3
			WHERE id = $1
			RETURNING id, name, parent_id, created_at`, id, name, parentID,
		).Scan(&t.ID, &t.Name, &t.ParentID, &t.CreatedAt)
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			err = tag.ErrParentNotFound
		}
		return tag.Tag{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return tag.Tag{}, err
	}
	return t, nil
}

// Delete refuses while any tender, pending tender or subcategory still points at the tag.
// The checks and the delete share a transaction holding the tag row lock.
func (r *TagsRepo) Delete(ctx context.Context, id int64) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var inUse, hasChildren bool

	err = observe(r.prom, "tags.delete.check", func() error {
		return tx.QueryRow(ctx, `
			SELECT
				EXISTS (SELECT 1 FROM tender_tags WHERE tag_id = g.id)
					OR EXISTS (SELECT 1 FROM pending_tender_tags WHERE tag_id = g.id),
				EXISTS (SELECT 1 FROM tags c WHERE c.parent_id = g.id)
			FROM tags g
			WHERE g.id = $1
			FOR UPDATE OF g`, id,
		).Scan(&inUse, &hasChildren)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = tag.ErrNotFound
		}
		return
	}

	if inUse {
		return tag.ErrInUse
	}
	if hasChildren {
		return tag.ErrHasChildren
	}

	err = observe(r.prom, "tags.delete", func() error {
		_, e := tx.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
		return e
	})
	if err != nil {
		// a tender linked the tag after the check
		if isForeignKeyViolation(err) {
			err = tag.ErrInUse
		}
		return
	}

	err = tx.Commit(ctx)
	return
}

// buildTagSummaryQuery returns the paged query, a count-only query over the same
// predicate, and the predicate args. LIMIT and OFFSET follow the args.
func buildTagSummaryQuery(f tag.ListFilter) (pageQuery, countQuery string, args []interface{}) {
	where := ""
	if s := strings.TrimSpace(f.Search); s != "" {
		where = " WHERE g.name ILIKE $1"
		args = append(args, utils.ContainsPattern(s))
	}

	pageQuery = `
		SELECT g.id, g.name, g.parent_id, p.name,
			(SELECT COUNT(*) FROM tender_tags x WHERE x.tag_id = g.id) AS tender_count,
			COUNT(*) OVER() AS total
		FROM tags g
		LEFT JOIN tags p ON p.id = g.parent_id` + where +
		fmt.Sprintf(" ORDER BY g.name ASC, g.id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	countQuery = `SELECT COUNT(*) FROM tags g` + where

	return pageQuery, countQuery, args
}

// ListSummaries backs the admin tags table.
func (r *TagsRepo) ListSummaries(ctx context.Context, f tag.ListFilter) ([]tag.Summary, int, error) {
	pageQuery, countQuery, args := buildTagSummaryQuery(f)

	out := make([]tag.Summary, 0, f.Limit)
	total := 0

	err := observe(r.prom, "tags.list", func() error {
		rows, err := r.pool.Query(ctx, pageQuery, append(args, f.Limit, f.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s tag.Summary
			if err := rows.Scan(&s.ID, &s.Name, &s.ParentID, &s.ParentName, &s.TenderCount, &total); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}

	if len(out) == 0 && f.Offset > 0 {
		err = observe(r.prom, "tags.count", func() error {
			return r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return out, total, nil
}
