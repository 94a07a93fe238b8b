package user

import (
	"errors"
	"strings"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleBuyer    Role = "BUYER"
	RoleSupplier Role = "SUPPLIER"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleBuyer, RoleSupplier:
		return true
	default:
		return false
	}
}

type Subscription string

const (
	SubscriptionFree    Subscription = "FREE"
	SubscriptionPartial Subscription = "PARTIAL"
	SubscriptionFull    Subscription = "FULL"
)

func (s Subscription) IsValid() bool {
	switch s {
	case SubscriptionFree, SubscriptionPartial, SubscriptionFull:
		return true
	default:
		return false
	}
}

type User struct {
	ID           int64        `json:"id"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // never expose hash in JSON
	Role         Role         `json:"role"`
	Subscription Subscription `json:"subscription"`
	// ParentTagID is the single top-level category a PARTIAL subscriber may browse.
	ParentTagID *int64    `json:"parentTagId,omitempty"`
	Country     string    `json:"country,omitempty"`
	Company     string    `json:"company,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type RegisterRequest struct {
	FirstName       string `json:"firstName" binding:"required,max=80"`
	LastName        string `json:"lastName" binding:"required,max=80"`
	Email           string `json:"email" binding:"required,trimmed_email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Country         string `json:"country" binding:"omitempty,max=80"`
	Company         string `json:"company" binding:"omitempty,max=120"`
	Role            Role   `json:"role" binding:"required,oneof=BUYER SUPPLIER"`
	// Subscription decides whether ParentTagID is required.
	Subscription Subscription `json:"subscription" binding:"required,oneof=FREE PARTIAL FULL"`
	// ParentTagID accepts a number or a numeric string, the way the signup form posts it.
	ParentTagID tag.Ref `json:"parentTagId"`
}

// CreateParams is what the store persists for a new account.
type CreateParams struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	Subscription Subscription
	ParentTagID  *int64
	Country      string
	Company      string
}

type UpdateProfileRequest struct {
	FirstName string `json:"firstName" form:"firstName" binding:"required,max=80"`
	LastName  string `json:"lastName" form:"lastName" binding:"required,max=80"`
	Country   string `json:"country" form:"country" binding:"omitempty,max=80"`
	Company   string `json:"company" form:"company" binding:"omitempty,max=120"`
}

type ListFilter struct {
	Search string
	Limit  int
	Offset int
}
