package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
)

type TagsRepo struct {
	s *Store
}

func (r *TagsRepo) All(_ context.Context) ([]tag.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]tag.Tag, 0, len(r.s.tags))
	for _, t := range r.s.tags {
		out = append(out, t)
	}
	sortTags(out)

	return out, nil
}

func sortTags(tags []tag.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Name != tags[j].Name {
			return tags[i].Name < tags[j].Name
		}
		return tags[i].ID < tags[j].ID
	})
}

func (r *TagsRepo) GetByID(_ context.Context, id int64) (tag.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tags[id]
	if !ok {
		return tag.Tag{}, tag.ErrNotFound
	}
	return t, nil
}

func (s *Store) childCountLocked(id int64) int {
	n := 0
	for _, t := range s.tags {
		if t.ParentID != nil && *t.ParentID == id {
			n++
		}
	}
	return n
}

func (s *Store) placeParentLocked(selfID, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	parent, ok := s.tags[*parentID]
	if !ok {
		return tag.ErrParentNotFound
	}
	children := 0
	if selfID != nil {
		children = s.childCountLocked(*selfID)
	}
	return tag.ValidateParent(selfID, &parent, children)
}

func (r *TagsRepo) Create(_ context.Context, name string, parentID *int64) (tag.Tag, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.placeParentLocked(nil, parentID); err != nil {
		return tag.Tag{}, err
	}

	t := tag.Tag{
		ID:        s.nextID("tags"),
		Name:      name,
		ParentID:  copyID(parentID),
		CreatedAt: s.now().UTC(),
	}
	s.tags[t.ID] = t

	return t, nil
}

func (r *TagsRepo) Update(_ context.Context, id int64, name string, parentID *int64) (tag.Tag, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tags[id]
	if !ok {
		return tag.Tag{}, tag.ErrNotFound
	}
	if err := s.placeParentLocked(&id, parentID); err != nil {
		return tag.Tag{}, err
	}

	t.Name = name
	t.ParentID = copyID(parentID)
	s.tags[id] = t

	return t, nil
}

func (r *TagsRepo) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[id]; !ok {
		return tag.ErrNotFound
	}
	if s.tagInUseLocked(id) {
		return tag.ErrInUse
	}
	if s.childCountLocked(id) > 0 {
		return tag.ErrHasChildren
	}

	delete(s.tags, id)
	for uid, u := range s.users {
		if u.ParentTagID != nil && *u.ParentTagID == id {
			u.ParentTagID = nil
			s.users[uid] = u
		}
	}

	return nil
}

func (s *Store) tagInUseLocked(id int64) bool {
	for _, t := range s.tenders {
		if hasID(t.TagIDs, id) {
			return true
		}
	}
	for _, t := range s.pending {
		if hasID(t.TagIDs, id) {
			return true
		}
	}
	return false
}

func (r *TagsRepo) ListSummaries(_ context.Context, f tag.ListFilter) ([]tag.Summary, int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Search))

	tags := make([]tag.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		if q != "" && !containsFold(t.Name, q) {
			continue
		}
		tags = append(tags, t)
	}
	sortTags(tags)

	out := make([]tag.Summary, 0, len(tags))
	for _, t := range tags {
		sum := tag.Summary{ID: t.ID, Name: t.Name, ParentID: copyID(t.ParentID)}
		if t.ParentID != nil {
			if p, ok := s.tags[*t.ParentID]; ok {
				name := p.Name
				sum.ParentName = &name
			}
		}
		for _, tn := range s.tenders {
			if hasID(tn.TagIDs, t.ID) {
				sum.TenderCount++
			}
		}
		out = append(out, sum)
	}

	return paginate(out, f.Limit, f.Offset), len(out), nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func hasID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
