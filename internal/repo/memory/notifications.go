package memory

import (
	"context"
	"sort"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/notification"
)

type NotificationsRepo struct {
	s *Store
}

func (r *NotificationsRepo) ListForUser(_ context.Context, userID int64) ([]notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]notification.Notification, 0)
	for _, n := range r.s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func (r *NotificationsRepo) MarkRead(_ context.Context, userID, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return notification.ErrNotFound
	}
	if n.ReadAt == nil {
		now := s.now().UTC()
		n.ReadAt = &now
		s.notifications[id] = n
	}

	return nil
}
