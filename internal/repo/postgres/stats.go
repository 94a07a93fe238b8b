package postgres

import (
	"context"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/stats"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewStatsRepo(pool *pgxpool.Pool, prom *observability.Prom) *StatsRepo {
	return &StatsRepo{pool: pool, prom: prom}
}

func (r *StatsRepo) Counts(ctx context.Context) (stats.Counts, error) {
	var c stats.Counts

	err := observe(r.prom, "stats.counts", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM users),
				(SELECT COUNT(*) FROM tenders),
				(SELECT COUNT(*) FROM pending_tenders),
				(SELECT COUNT(*) FROM tags WHERE parent_id IS NULL),
				(SELECT COUNT(*) FROM tags WHERE parent_id IS NOT NULL)`,
		).Scan(&c.TotalUsers, &c.TotalTenders, &c.TotalPendingTenders, &c.TotalTags, &c.TotalSubtags)
	})

	return c, err
}
