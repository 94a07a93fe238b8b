package tag

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Tag is either a top-level category (ParentID == nil) or a subcategory of one.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t Tag) IsTopLevel() bool {
	return t.ParentID == nil
}

// Summary is the row shape of the admin tags table.
type Summary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ParentID    *int64  `json:"parentId"`
	ParentName  *string `json:"parentName"`
	TenderCount int     `json:"tenderCount"`
}

type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Node struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Children []Option `json:"children"`
}

var (
	ErrNotFound          = errors.New("tag not found")
	ErrParentNotFound    = errors.New("parent tag not found")
	ErrParentNotTopLevel = errors.New("parent tag must be a top-level category")
	ErrSelfParent        = errors.New("tag cannot be its own parent")
	ErrHasChildren       = errors.New("tag has subcategories")
	ErrInUse             = errors.New("tag is referenced by tenders")
	ErrNameRequired      = errors.New("tag name is required")
)

type WriteRequest struct {
	Name     string `json:"name"`
	ParentID Ref    `json:"parentId"`
}

func (r WriteRequest) Normalize() (name string, parentID *int64, err error) {
	name = strings.TrimSpace(r.Name)
	if name == "" {
		return "", nil, ErrNameRequired
	}
	return name, r.ParentID.Ptr(), nil
}

type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

// ValidateParent checks the two-level invariant for placing self (nil on create)
// under parent. childCount is the number of tags whose parent is self.
func ValidateParent(selfID *int64, parent *Tag, childCount int) error {
	if parent == nil {
		return nil
	}
	if selfID != nil && *selfID == parent.ID {
		return ErrSelfParent
	}
	if !parent.IsTopLevel() {
		return ErrParentNotTopLevel
	}
	if childCount > 0 {
		return ErrHasChildren
	}
	return nil
}

// BuildTree groups subcategories under their top-level parent, keeping the input order.
func BuildTree(tags []Tag) []Node {
	nodes := make([]Node, 0)
	index := make(map[int64]int)

	for _, t := range tags {
		if t.IsTopLevel() {
			index[t.ID] = len(nodes)
			nodes = append(nodes, Node{ID: t.ID, Name: t.Name, Children: []Option{}})
		}
	}

	for _, t := range tags {
		if t.IsTopLevel() {
			continue
		}
		i, ok := index[*t.ParentID]
		if !ok {
			continue
		}
		nodes[i].Children = append(nodes[i].Children, Option{ID: t.ID, Name: t.Name})
	}

	return nodes
}

// Ref is an optional tag id as posted by browser forms: a JSON number, a numeric
// string, null or "". Zero and empty mean "no tag".
type Ref struct {
	ID    int64
	Valid bool
}

var ErrInvalidRef = errors.New("tag id must be an integer")

func NewRef(id int64) Ref {
	return Ref{ID: id, Valid: id > 0}
}

func (r Ref) Ptr() *int64 {
	if !r.Valid {
		return nil
	}
	id := r.ID
	return &id
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = Ref{}
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*r = Ref{}
			return nil
		}
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ErrInvalidRef
	}
	if n < 0 {
		return ErrInvalidRef
	}

	*r = NewRef(n)
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(r.ID, 10)), nil
}
