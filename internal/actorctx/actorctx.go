package actorctx

import (
	"context"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
)

// Actor is the authenticated caller of a request, taken from the session token.
type Actor struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == user.RoleAdmin
}

type ctxKey struct{}

func With(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)

	return a, ok && a.ID > 0
}
