package tender

import (
	"encoding/json"
	"strings"
	"time"
)

// ParseTagIDs decodes the "tags" form field: a JSON array of positive ids.
// Ids may be numbers or numeric strings. Duplicates are dropped, order is kept.
func ParseTagIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidTags
	}

	var items []json.Number
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var anyItems []interface{}
	if err := dec.Decode(&anyItems); err != nil {
		return nil, ErrInvalidTags
	}

	for _, it := range anyItems {
		switch v := it.(type) {
		case json.Number:
			items = append(items, v)
		case string:
			items = append(items, json.Number(strings.TrimSpace(v)))
		default:
			return nil, ErrInvalidTags
		}
	}

	if len(items) == 0 {
		return nil, ErrInvalidTags
	}

	seen := make(map[int64]struct{}, len(items))
	out := make([]int64, 0, len(items))

	for _, n := range items {
		id, err := n.Int64()
		if err != nil || id <= 0 {
			return nil, ErrInvalidTags
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out, nil
}

var deadlineLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04",
}

// ParseDeadline accepts a date (YYYY-MM-DD) or an RFC 3339 timestamp and
// truncates it to the calendar day in UTC.
func ParseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDeadline
	}

	for _, layout := range deadlineLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, ErrInvalidDeadline
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type SubmissionInput struct {
	Title       string
	Description string
	Deadline    string
	Location    string
	Source      string
	Tags        string
}

// Validate turns raw form input into a Submission owned by buyerID.
func (in SubmissionInput) Validate(buyerID int64) (Submission, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)

	if title == "" || desc == "" || strings.TrimSpace(in.Deadline) == "" || strings.TrimSpace(in.Tags) == "" {
		return Submission{}, ErrMissingFields
	}

	deadline, err := ParseDeadline(in.Deadline)
	if err != nil {
		return Submission{}, err
	}

	tagIDs, err := ParseTagIDs(in.Tags)
	if err != nil {
		return Submission{}, err
	}

	return Submission{
		Title:       title,
		Description: desc,
		Deadline:    deadline,
		Location:    optionalString(in.Location),
		Source:      optionalString(in.Source),
		BuyerID:     buyerID,
		TagIDs:      tagIDs,
	}, nil
}
