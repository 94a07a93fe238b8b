package memory

import (
	"context"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/passwordreset"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
)

type PasswordResetsRepo struct {
	s *Store
}

func (r *PasswordResetsRepo) Create(_ context.Context, t passwordreset.Token) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[t.UserID]; !ok {
		return user.ErrNotFound
	}
	s.resets[t.TokenHash] = t

	return nil
}

func (r *PasswordResetsRepo) Consume(_ context.Context, tokenHash, passwordHash string, now time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.resets[tokenHash]
	if !ok {
		return passwordreset.ErrNotFound
	}

	if t.ExpiredAt(now) {
		delete(s.resets, tokenHash)
		return passwordreset.ErrExpired
	}

	u, ok := s.users[t.UserID]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now().UTC()
	s.users[u.ID] = u

	for h, other := range s.resets {
		if other.UserID == t.UserID {
			delete(s.resets, h)
		}
	}

	return nil
}
