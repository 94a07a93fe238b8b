package passwordreset

import (
	"errors"
	"time"
)

// Token is stored by hash; the raw value only ever lives in the emailed link.
type Token struct {
	TokenHash string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

var (
	ErrNotFound = errors.New("reset token not found")
	ErrExpired  = errors.New("reset token expired")
)

type ForgotRequest struct {
	Email string `json:"email" binding:"required,trimmed_email"`
}

type ResetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}
