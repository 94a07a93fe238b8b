package notification

import (
	"errors"
	"fmt"
	"time"
)

type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

var ErrNotFound = errors.New("notification not found")

func TenderApproved(title string) string {
	return fmt.Sprintf(`Your tender "%s" has been approved.`, title)
}

func TenderRejected(title string) string {
	return fmt.Sprintf(`Your tender "%s" has been rejected.`, title)
}
