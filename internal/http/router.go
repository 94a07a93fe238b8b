package http

import (
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/auth"
	"github.com/OussamaRhimi/tender-mvp/internal/cache"
	"github.com/OussamaRhimi/tender-mvp/internal/config"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/http/handlers"
	"github.com/OussamaRhimi/tender-mvp/internal/http/middlewares"
	"github.com/OussamaRhimi/tender-mvp/internal/notifications"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/OussamaRhimi/tender-mvp/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "tender-api"

type UserStore interface {
	handlers.UserReader
	handlers.UserWriter
	handlers.ProfileStore
	handlers.UserAdminStore
}

type TenderStore interface {
	handlers.TenderStore
	handlers.ModerationStore
}

// Deps is everything the router needs. Both the postgres and the in-memory
// repositories satisfy the store interfaces.
type Deps struct {
	Config         config.Config
	Users          UserStore
	Tags           handlers.TagStore
	Tenders        TenderStore
	Favorites      handlers.FavoriteStore
	Messages       handlers.MessageStore
	Notifications  handlers.NotificationStore
	PasswordResets handlers.PasswordResetStore
	Stats          handlers.StatsReader

	Cache  cache.Cache
	Files  storage.FileStore
	Mailer notifications.Mailer
	JWT    *auth.Manager

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	// Readiness checks run by /readyz, keyed by dependency name.
	Readiness map[string]handlers.Pinger
	// Draining reports that shutdown has started; /readyz then answers 503.
	Draining func() bool
	// UploadDir is served under the upload public path when files are stored locally.
	UploadDir string
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders(cfg.IsProd()))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health
	h := handlers.NewHealthHandler(d.Readiness, d.Draining)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.UploadDir != "" {
		r.Static(cfg.UploadPublicPath, d.UploadDir)
	}

	// wire up handlers
	authHandler := handlers.NewAuthHandler(d.Users, d.Users, d.Tags, d.PasswordResets, d.Mailer, d.JWT, d.Prom, cfg)
	profileHandler := handlers.NewProfileHandler(d.Users)
	tendersHandler := handlers.NewTendersHandler(d.Tenders, d.Users, d.Files, d.Prom)
	moderationHandler := handlers.NewModerationHandler(d.Tenders, d.Files, d.Prom)
	tagsHandler := handlers.NewTagsHandler(d.Tags, d.Cache)
	favoritesHandler := handlers.NewFavoritesHandler(d.Favorites)
	messagesHandler := handlers.NewMessagesHandler(d.Messages)
	notificationsHandler := handlers.NewNotificationsHandler(d.Notifications)
	usersHandler := handlers.NewUsersHandler(d.Users)
	metricsHandler := handlers.NewMetricsHandler(d.Stats)

	contactTo := cfg.ContactEmailTo
	if contactTo == "" {
		contactTo = cfg.AdminEmail
	}
	contactHandler := handlers.NewContactHandler(d.Mailer, contactTo, d.Prom)

	authMW := middlewares.NewAuthMiddleware(d.JWT)
	requireAuth := authMW.RequireAuth()
	requireAdmin := middlewares.RequireRole(user.RoleAdmin)

	perMinute := cfg.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	publicLimiter := middlewares.NewRateLimiter(perMinute, time.Minute)
	limitByIP := publicLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	api := r.Group("/api")
	api.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	api.Use(middlewares.RequireJSON("/api/tenders/new"))

	// accounts and session
	api.POST("/register", limitByIP, authHandler.Register)
	api.POST("/login", limitByIP, authHandler.Login)
	api.POST("/logout", authHandler.Logout)
	api.GET("/auth/check", requireAuth, authHandler.Check)
	api.POST("/forgot-password", limitByIP, authHandler.ForgotPassword)
	api.POST("/reset-password", limitByIP, authHandler.ResetPassword)
	api.POST("/contact", limitByIP, contactHandler.Send)

	api.GET("/profile", requireAuth, profileHandler.Get)
	api.PATCH("/profile", requireAuth, profileHandler.Update)

	// taxonomy
	api.GET("/tags/all", tagsHandler.All)
	api.GET("/tags/parents", tagsHandler.Parents)
	api.GET("/tags/tree", tagsHandler.Tree)

	// tenders
	optionalAuth := authMW.OptionalAuth()
	api.POST("/tenders/new", requireAuth, tendersHandler.Submit)
	api.POST("/tenders/search", optionalAuth, tendersHandler.Search)
	api.GET("/tenders", optionalAuth, tendersHandler.List)
	api.GET("/tenders/:id", tendersHandler.Get)
	api.GET("/inbox/my-tenders", requireAuth, tendersHandler.Mine)

	// favorites, messages, notifications
	authed := api.Group("")
	authed.Use(requireAuth)
	authed.POST("/favorites", favoritesHandler.Add)
	authed.GET("/favorites", favoritesHandler.List)
	authed.DELETE("/favorites", favoritesHandler.Remove)
	authed.POST("/messages", messagesHandler.Send)
	authed.GET("/messages", messagesHandler.List)
	authed.GET("/notifications", notificationsHandler.List)
	authed.POST("/notifications/:id/read", notificationsHandler.MarkRead)

	// owners may delete their own tenders, so this one checks ownership instead of role
	authed.DELETE("/admin/tenders/:id", tendersHandler.Delete)

	admin := api.Group("/admin")
	admin.Use(requireAuth, requireAdmin)
	admin.GET("/metrics", metricsHandler.Get)
	admin.GET("/tenders", tendersHandler.List)
	admin.GET("/pending-tenders", moderationHandler.List)
	admin.GET("/pending-tenders/:id", moderationHandler.Get)
	admin.POST("/tenders/approve/:id", moderationHandler.Approve)
	admin.POST("/tenders/reject/:id", moderationHandler.Reject)

	admin.GET("/tags", tagsHandler.List)
	admin.POST("/tags/new", tagsHandler.Create)
	admin.PATCH("/tags/:id", tagsHandler.Update)
	admin.DELETE("/tags/:id", tagsHandler.Delete)

	admin.GET("/users", usersHandler.List)
	admin.DELETE("/users/:id", usersHandler.Delete)

	return r
}
