package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/auth"
	"github.com/OussamaRhimi/tender-mvp/internal/config"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/passwordreset"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/notifications"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/OussamaRhimi/tender-mvp/internal/security"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
}

type TagReader interface {
	GetByID(ctx context.Context, id int64) (tag.Tag, error)
}

type PasswordResetStore interface {
	Create(ctx context.Context, t passwordreset.Token) error
	Consume(ctx context.Context, tokenHash, passwordHash string, now time.Time) error
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	tags       TagReader
	resets     PasswordResetStore
	mailer     notifications.Mailer
	jwt        *auth.Manager
	prom       *observability.Prom
	cfg        config.Config
	now        func() time.Time
}

func NewAuthHandler(
	users UserReader,
	userWriter UserWriter,
	tags TagReader,
	resets PasswordResetStore,
	mailer notifications.Mailer,
	jwtManager *auth.Manager,
	prom *observability.Prom,
	cfg config.Config,
) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		tags:       tags,
		resets:     resets,
		mailer:     mailer,
		jwt:        jwtManager,
		prom:       prom,
		cfg:        cfg,
		now:        time.Now,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,trimmed_email"`
	Password string `json:"password" binding:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Password != req.ConfirmPassword {
		RespondBadRequest(ctx, "Passwords do not match", nil)
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)

	defer cancel()

	var parentTagID *int64

	// a PARTIAL subscription is scoped to exactly one top-level category
	if req.Subscription == user.SubscriptionPartial {
		if !req.ParentTagID.Valid {
			RespondBadRequest(ctx, "A category is required for a partial subscription", nil)
			return
		}

		parent, err := h.tags.GetByID(cctx, req.ParentTagID.ID)
		if err != nil {
			if errors.Is(err, tag.ErrNotFound) {
				RespondBadRequest(ctx, "Selected category does not exist", nil)
				return
			}
			RespondInternal(ctx, "Could not create user", err)
			return
		}

		if !parent.IsTopLevel() {
			RespondBadRequest(ctx, "Selected category must be a top-level category", nil)
			return
		}

		parentTagID = req.ParentTagID.Ptr()
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user", err)
		return
	}

	u, err := h.userWriter.Create(cctx, user.CreateParams{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         req.Role,
		Subscription: req.Subscription,
		ParentTagID:  parentTagID,
		Country:      strings.TrimSpace(req.Country),
		Company:      strings.TrimSpace(req.Company),
	})

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"userId":  u.ID,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			RespondInternal(ctx, "Could not log in", err)
			return
		}
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	token, expiresAt, err := h.jwt.Generate(auth.Identity{
		UserID:    foundUser.ID,
		Email:     foundUser.Email,
		Role:      string(foundUser.Role),
		FirstName: foundUser.FirstName,
		LastName:  foundUser.LastName,
	})

	if err != nil {
		RespondInternal(ctx, "Could not create session", err)
		return
	}

	h.setSessionCookie(ctx, token, expiresAt)

	redirectTo := "/home"
	if foundUser.Role == user.RoleAdmin {
		redirectTo = "/dashboard"
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":    true,
		"redirectTo": redirectTo,
	})
}

// Logout only clears the cookie. A copied token stays valid until it expires.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.clearSessionCookie(ctx)
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) Check(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          a,
	})
}

const forgotPasswordReply = "If an account exists for that email, a reset link has been sent."

// ForgotPassword answers the same way whether or not the account exists.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req passwordreset.ForgotRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			RespondInternal(ctx, "Could not process request", err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"message": forgotPasswordReply})
		return
	}

	raw, hash, err := security.NewResetToken()
	if err != nil {
		RespondInternal(ctx, "Could not process request", err)
		return
	}

	now := h.now().UTC()
	err = h.resets.Create(cctx, passwordreset.Token{
		TokenHash: hash,
		UserID:    u.ID,
		ExpiresAt: now.Add(h.cfg.ResetTokenTTL()),
		CreatedAt: now,
	})
	if err != nil {
		RespondInternal(ctx, "Could not process request", err)
		return
	}

	link := h.cfg.AppURL + "/reset-password/" + raw
	err = h.mailer.Send(cctx, notifications.PasswordResetEmail(u.Email, link))
	h.prom.IncEmail("password_reset", err)

	if err != nil {
		slog.Default().WarnContext(cctx, "password reset email failed",
			"err", err,
			"user_id", u.ID,
			"request_id", requestIDFrom(ctx),
		)
	}

	ctx.JSON(http.StatusOK, gin.H{"message": forgotPasswordReply})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req passwordreset.ResetRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not reset password", err)
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	err = h.resets.Consume(cctx, security.HashResetToken(strings.TrimSpace(req.Token)), hash, h.now().UTC())
	if err != nil {
		if errors.Is(err, passwordreset.ErrNotFound) || errors.Is(err, passwordreset.ErrExpired) || errors.Is(err, user.ErrNotFound) {
			RespondBadRequest(ctx, "Invalid or expired token", nil)
			return
		}
		RespondInternal(ctx, "Could not reset password", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

// Helper functions

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteLaxMode)

	ctx.SetCookie(
		auth.CookieName,
		raw,
		maxAge,
		"/",
		"",
		h.cfg.IsProd(),
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		auth.CookieName,
		"",
		-1,
		"/",
		"",
		h.cfg.IsProd(),
		true,
	)
}
