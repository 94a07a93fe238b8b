package postgres

import (
	"context"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/favorite"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FavoritesRepo struct {
	pool    *pgxpool.Pool
	prom    *observability.Prom
	tenders *TendersRepo
}

func NewFavoritesRepo(pool *pgxpool.Pool, prom *observability.Prom, tenders *TendersRepo) *FavoritesRepo {
	return &FavoritesRepo{pool: pool, prom: prom, tenders: tenders}
}

// Add reports created=false when the pair is already stored; the unique
// (user_id, tender_id) constraint keeps it at one row.
func (r *FavoritesRepo) Add(ctx context.Context, userID, tenderID int64) (created bool, err error) {
	err = observe(r.prom, "favorites.add", func() error {
		res, e := r.pool.Exec(ctx, `
			INSERT INTO favorites (user_id, tender_id) VALUES ($1, $2)
			ON CONFLICT ON CONSTRAINT favorites_user_tender_key DO NOTHING`, userID, tenderID)
		if e != nil {
			return e
		}
		created = res.RowsAffected() == 1
		return nil
	})

	if isForeignKeyViolation(err) {
		return false, favorite.ErrTenderNotFound
	}

	return created, err
}

func (r *FavoritesRepo) Remove(ctx context.Context, userID, tenderID int64) error {
	return observe(r.prom, "favorites.remove", func() error {
		res, err := r.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND tender_id = $2`, userID, tenderID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return favorite.ErrNotFound
		}
		return nil
	})
}

// List returns the user's favorited tenders, most recently favorited first.
func (r *FavoritesRepo) List(ctx context.Context, userID int64) ([]tender.View, error) {
	items := make([]tender.View, 0)

	err := observe(r.prom, "favorites.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT t.id, t.title, t.description, t.deadline, t.location, t.source, t.buyer_id,
				t.created_at, u.first_name, u.last_name, u.email
			FROM favorites f
			JOIN tenders t ON t.id = f.tender_id
			JOIN users u ON u.id = t.buyer_id
			WHERE f.user_id = $1
			ORDER BY f.created_at DESC, t.id DESC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v tender.View
			var location, source *string
			var first, last string

			if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.Deadline, &location, &source, &v.BuyerID,
				&v.CreatedAt, &first, &last, &v.BuyerEmail); err != nil {
				return err
			}

			v.Location, v.Source = deref(location), deref(source)
			v.BuyerName = fullName(first, last)
			items = append(items, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	if err := r.tenders.attachTags(ctx, publishedSource, items); err != nil {
		return nil, err
	}

	now := r.tenders.now()
	for i := range items {
		items[i] = items[i].WithStatus(now)
	}

	return items, nil
}
