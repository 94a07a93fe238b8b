package tender

import (
	"errors"
	"time"
)

type Stage string

const (
	StagePending   Stage = "PENDING"
	StagePublished Stage = "PUBLISHED"
)

// Status is derived from the deadline at read time; it is never stored.
type Status string

const (
	StatusOpen    Status = "open"
	StatusAwarded Status = "awarded"
)

// Tender is the stored shape shared by published and pending tenders.
type Tender struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Location    *string   `json:"location"`
	Source      *string   `json:"source"`
	BuyerID     int64     `json:"buyerId"`
	TagIDs      []int64   `json:"tagIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatusAt reports open while the deadline day has not passed.
func StatusAt(deadline, now time.Time) Status {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	if deadline.UTC().Before(today) {
		return StatusAwarded
	}
	return StatusOpen
}

type TagRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// View is a tender decorated with its buyer and tags for listings.
type View struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Location    string    `json:"location"`
	Source      string    `json:"source"`
	BuyerID     int64     `json:"buyerId"`
	BuyerName   string    `json:"buyerName"`
	BuyerEmail  string    `json:"buyerEmail"`
	Tags        []string  `json:"tags"`
	TagRefs     []TagRef  `json:"tagRefs"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (v View) WithStatus(now time.Time) View {
	v.Status = StatusAt(v.Deadline, now)
	return v
}

func (v View) HasTag(id int64) bool {
	for _, t := range v.TagRefs {
		if t.ID == id {
			return true
		}
	}
	return false
}

var (
	ErrNotFound        = errors.New("tender not found")
	ErrPendingNotFound = errors.New("pending tender not found")
	ErrUnknownTag      = errors.New("tender references an unknown tag")
	ErrInvalidTags     = errors.New("invalid tags format")
	ErrInvalidDeadline = errors.New("invalid deadline")
	ErrForbidden       = errors.New("not allowed to modify this tender")
	ErrMissingFields   = errors.New("title, description, deadline, and tags are required")
)

// Submission is a validated create request, before it is routed to pending or published.
type Submission struct {
	Title       string
	Description string
	Deadline    time.Time
	Location    *string
	Source      *string
	BuyerID     int64
	TagIDs      []int64
}

// Filter holds the optional search predicates. Nil/zero fields are not applied.
type Filter struct {
	Title        string
	TagID        *int64
	SubtagID     *int64
	Location     string
	DeadlineFrom *time.Time
	Email        string
	// Query matches title or buyer first name, last name or email.
	Query   string
	OwnerID *int64
	// AllowedCategoryID scopes results to a category and its subcategories.
	AllowedCategoryID *int64
	Limit             int
	Offset            int
}

type Page struct {
	Items []View
	Total int
}
