package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/notification"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
)

type TendersRepo struct {
	s *Store
}

func (r *TendersRepo) Submit(_ context.Context, sub tender.Submission, stage tender.Stage) (tender.Tender, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range sub.TagIDs {
		if _, ok := s.tags[id]; !ok {
			return tender.Tender{}, tender.ErrUnknownTag
		}
	}

	t := tender.Tender{
		Title:       sub.Title,
		Description: sub.Description,
		Deadline:    sub.Deadline,
		Location:    copyString(sub.Location),
		Source:      copyString(sub.Source),
		BuyerID:     sub.BuyerID,
		TagIDs:      append([]int64(nil), sub.TagIDs...),
	}

	if stage == tender.StagePublished {
		return s.insertTenderLocked(t), nil
	}

	now := s.now().UTC()
	t.ID = s.nextID("pending_tenders")
	t.CreatedAt, t.UpdatedAt = now, now
	s.pending[t.ID] = t

	return t, nil
}

func (s *Store) insertTenderLocked(t tender.Tender) tender.Tender {
	now := s.now().UTC()
	t.ID = s.nextID("tenders")
	t.CreatedAt, t.UpdatedAt = now, now
	s.tenders[t.ID] = t
	return t
}

func (s *Store) notifyLocked(userID int64, msg string) {
	n := notification.Notification{
		ID:        s.nextID("notifications"),
		UserID:    userID,
		Message:   msg,
		CreatedAt: s.now().UTC(),
	}
	s.notifications[n.ID] = n
}

func (r *TendersRepo) Approve(_ context.Context, pendingID int64) (tender.Tender, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[pendingID]
	if !ok {
		return tender.Tender{}, tender.ErrPendingNotFound
	}

	published := s.insertTenderLocked(tender.Tender{
		Title:       p.Title,
		Description: p.Description,
		Deadline:    p.Deadline,
		Location:    copyString(p.Location),
		Source:      copyString(p.Source),
		BuyerID:     p.BuyerID,
		TagIDs:      append([]int64(nil), p.TagIDs...),
	})
	s.notifyLocked(p.BuyerID, notification.TenderApproved(p.Title))
	delete(s.pending, pendingID)

	return published, nil
}

func (r *TendersRepo) Reject(_ context.Context, pendingID int64) (tender.Tender, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[pendingID]
	if !ok {
		return tender.Tender{}, tender.ErrPendingNotFound
	}

	delete(s.pending, pendingID)
	s.notifyLocked(p.BuyerID, notification.TenderRejected(p.Title))

	return p, nil
}

func (r *TendersRepo) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenders[id]; !ok {
		return tender.ErrNotFound
	}
	s.deleteTenderLocked(id)

	return nil
}

func (s *Store) deleteTenderLocked(id int64) {
	delete(s.tenders, id)
	for k := range s.favorites {
		if k.tenderID == id {
			delete(s.favorites, k)
		}
	}
}

func (r *TendersRepo) GetByID(_ context.Context, id int64) (tender.View, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenders[id]
	if !ok {
		return tender.View{}, tender.ErrNotFound
	}
	return s.viewLocked(t), nil
}

func (r *TendersRepo) GetPending(_ context.Context, id int64) (tender.View, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.pending[id]
	if !ok {
		return tender.View{}, tender.ErrPendingNotFound
	}
	return s.viewLocked(t), nil
}

func (r *TendersRepo) Search(_ context.Context, f tender.Filter) (tender.Page, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.searchLocked(r.s.tenders, f), nil
}

func (r *TendersRepo) ListPending(_ context.Context, f tender.Filter) (tender.Page, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.searchLocked(r.s.pending, f), nil
}

func (s *Store) searchLocked(table map[int64]tender.Tender, f tender.Filter) tender.Page {
	matched := make([]tender.View, 0)

	for _, t := range table {
		v := s.viewLocked(t)
		if s.matchesLocked(v, f) {
			matched = append(matched, v)
		}
	}

	sortViews(matched)

	return tender.Page{
		Items: paginate(matched, f.Limit, f.Offset),
		Total: len(matched),
	}
}

// matchesLocked mirrors the SQL predicate builder of the postgres store.
func (s *Store) matchesLocked(v tender.View, f tender.Filter) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Title)); q != "" && !containsFold(v.Title, q) {
		return false
	}
	if f.TagID != nil && !v.HasTag(*f.TagID) {
		return false
	}
	if f.SubtagID != nil && !v.HasTag(*f.SubtagID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Location)); q != "" && !containsFold(v.Location, q) {
		return false
	}
	if f.DeadlineFrom != nil && v.Deadline.Before(*f.DeadlineFrom) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Email)); q != "" && !containsFold(v.BuyerEmail, q) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		buyer := s.users[v.BuyerID]
		if !containsFold(v.Title, q) && !containsFold(buyer.FirstName, q) &&
			!containsFold(buyer.LastName, q) && !containsFold(buyer.Email, q) {
			return false
		}
	}
	if f.OwnerID != nil && v.BuyerID != *f.OwnerID {
		return false
	}
	if f.AllowedCategoryID != nil {
		allowed := false
		for _, ref := range v.TagRefs {
			if ref.ID == *f.AllowedCategoryID || (ref.ParentID != nil && *ref.ParentID == *f.AllowedCategoryID) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

func (s *Store) viewLocked(t tender.Tender) tender.View {
	buyer := s.users[t.BuyerID]

	v := tender.View{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Deadline:    t.Deadline,
		Location:    derefString(t.Location),
		Source:      derefString(t.Source),
		BuyerID:     t.BuyerID,
		BuyerName:   buyer.FullName(),
		BuyerEmail:  buyer.Email,
		Tags:        []string{},
		TagRefs:     []tender.TagRef{},
		CreatedAt:   t.CreatedAt,
	}

	refs := make([]tender.TagRef, 0, len(t.TagIDs))
	for _, id := range t.TagIDs {
		if g, ok := s.tags[id]; ok {
			refs = append(refs, tender.TagRef{ID: g.ID, Name: g.Name, ParentID: copyID(g.ParentID)})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].ID < refs[j].ID
	})

	for _, ref := range refs {
		v.Tags = append(v.Tags, ref.Name)
		v.TagRefs = append(v.TagRefs, ref)
	}

	return v.WithStatus(s.now())
}

// newest first, id breaks ties
func sortViews(views []tender.View) {
	sort.Slice(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].ID > views[j].ID
	})
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
