package memory

import (
	"context"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/stats"
)

type StatsRepo struct {
	s *Store
}

func (r *StatsRepo) Counts(_ context.Context) (stats.Counts, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := stats.Counts{
		TotalUsers:          len(s.users),
		TotalTenders:        len(s.tenders),
		TotalPendingTenders: len(s.pending),
	}
	for _, t := range s.tags {
		if t.IsTopLevel() {
			c.TotalTags++
		} else {
			c.TotalSubtags++
		}
	}

	return c, nil
}
