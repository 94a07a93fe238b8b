package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
)

type UsersRepo struct {
	s *Store
}

func (r *UsersRepo) Create(_ context.Context, p user.CreateParams) (user.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(p.Email)
	for _, u := range s.users {
		if u.Email == email {
			return user.User{}, user.ErrEmailTaken
		}
	}

	if p.ParentTagID != nil {
		if _, ok := s.tags[*p.ParentTagID]; !ok {
			p.ParentTagID = nil
		}
	}

	now := s.now().UTC()
	u := user.User{
		ID:           s.nextID("users"),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        email,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		Subscription: p.Subscription,
		ParentTagID:  p.ParentTagID,
		Country:      p.Country,
		Company:      p.Company,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u

	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) UpdateProfile(_ context.Context, id int64, req user.UpdateProfileRequest) (user.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u.FirstName = req.FirstName
	u.LastName = req.LastName
	u.Country = req.Country
	u.Company = req.Company
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u

	return u, nil
}

func (r *UsersRepo) List(_ context.Context, f user.ListFilter) ([]user.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]user.User, 0)

	for _, u := range r.s.users {
		if q != "" && !containsFold(u.FirstName, q) && !containsFold(u.LastName, q) && !containsFold(u.Email, q) {
			continue
		}
		matched = append(matched, u)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, f.Limit, f.Offset), len(matched), nil
}

// Delete cascades to everything the user owns, like the foreign keys do in postgres.
func (r *UsersRepo) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(s.users, id)

	for tid, t := range s.tenders {
		if t.BuyerID == id {
			s.deleteTenderLocked(tid)
		}
	}
	for pid, t := range s.pending {
		if t.BuyerID == id {
			delete(s.pending, pid)
		}
	}
	for k := range s.favorites {
		if k.userID == id {
			delete(s.favorites, k)
		}
	}
	for mid, m := range s.messages {
		if m.SenderID == id || m.ReceiverID == id {
			delete(s.messages, mid)
		}
	}
	for nid, n := range s.notifications {
		if n.UserID == id {
			delete(s.notifications, nid)
		}
	}
	for h, t := range s.resets {
		if t.UserID == id {
			delete(s.resets, h)
		}
	}

	return nil
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
