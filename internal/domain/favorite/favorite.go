package favorite

import (
	"errors"
	"time"
)

type Favorite struct {
	UserID    int64     `json:"userId"`
	TenderID  int64     `json:"tenderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Request struct {
	TenderID int64 `json:"tenderId" binding:"required,min=1"`
}

var ErrTenderNotFound = errors.New("tender not found")

var ErrNotFound = errors.New("favorite not found")
