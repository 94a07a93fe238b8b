package postgres

import (
	"context"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/notification"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNotificationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationsRepo {
	return &NotificationsRepo{pool: pool, prom: prom}
}

func (r *NotificationsRepo) ListForUser(ctx context.Context, userID int64) ([]notification.Notification, error) {
	out := make([]notification.Notification, 0)

	err := observe(r.prom, "notifications.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, user_id, message, read_at, created_at
			FROM notifications
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var n notification.Notification
			if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.ReadAt, &n.CreatedAt); err != nil {
				return err
			}
			out = append(out, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// MarkRead only touches a notification owned by userID; re-marking is a no-op.
func (r *NotificationsRepo) MarkRead(ctx context.Context, userID, id int64) error {
	return observe(r.prom, "notifications.mark_read", func() error {
		res, err := r.pool.Exec(ctx, `
			UPDATE notifications SET read_at = COALESCE(read_at, NOW())
			WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return notification.ErrNotFound
		}
		return nil
	})
}
