package memory

import (
	"context"
	"sort"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/favorite"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
)

type FavoritesRepo struct {
	s *Store
}

func (r *FavoritesRepo) Add(_ context.Context, userID, tenderID int64) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenders[tenderID]; !ok {
		return false, favorite.ErrTenderNotFound
	}

	k := favoriteKey{userID: userID, tenderID: tenderID}
	if _, ok := s.favorites[k]; ok {
		return false, nil
	}
	s.favorites[k] = s.now().UTC()

	return true, nil
}

func (r *FavoritesRepo) Remove(_ context.Context, userID, tenderID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := favoriteKey{userID: userID, tenderID: tenderID}
	if _, ok := s.favorites[k]; !ok {
		return favorite.ErrNotFound
	}
	delete(s.favorites, k)

	return nil
}

func (r *FavoritesRepo) List(_ context.Context, userID int64) ([]tender.View, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	type fav struct {
		view tender.View
		at   int64
	}

	favs := make([]fav, 0)
	for k, at := range s.favorites {
		if k.userID != userID {
			continue
		}
		t, ok := s.tenders[k.tenderID]
		if !ok {
			continue
		}
		favs = append(favs, fav{view: s.viewLocked(t), at: at.UnixNano()})
	}

	sort.Slice(favs, func(i, j int) bool {
		if favs[i].at != favs[j].at {
			return favs[i].at > favs[j].at
		}
		return favs[i].view.ID > favs[j].view.ID
	})

	out := make([]tender.View, 0, len(favs))
	for _, f := range favs {
		out = append(out, f.view)
	}
	return out, nil
}

// Count is used by tests to check the one-row-per-pair rule.
func (r *FavoritesRepo) Count(_ context.Context, userID, tenderID int64) int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if _, ok := r.s.favorites[favoriteKey{userID: userID, tenderID: tenderID}]; ok {
		return 1
	}
	return 0
}
