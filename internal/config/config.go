package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env   string `validate:"required,oneof=dev test prod"`
	Port  int    `validate:"gte=0,lte=65535"`
	Store string `validate:"required,oneof=postgres memory"`

	DBURL          string `validate:"required_if=Store postgres"`
	DBMaxConns     int32  `validate:"gte=1"`
	MigrateOnStart bool

	JWTSecret          string `validate:"required,min=8"`
	SessionTTLDays     int    `validate:"gte=1"`
	ResetTokenTTLMins  int    `validate:"gte=1"`
	AppURL             string `validate:"required,url"`
	CORSAllowedOrigins []string
	RateLimitPerMinute int `validate:"gte=1"`
	MaxBodyBytes       int64 `validate:"gte=1024"`

	AdminEmail     string `validate:"omitempty,email"`
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int `validate:"gte=1"`

	UploadDir        string `validate:"required"`
	UploadPublicPath string `validate:"required,startswith=/"`

	MinIOEndpoint  string
	MinIOAccessKey string `validate:"required_with=MinIOEndpoint"`
	MinIOSecretKey string `validate:"required_with=MinIOEndpoint"`
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPublicURL string

	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string `validate:"omitempty,email"`
	ContactEmailTo string `validate:"omitempty,email"`

	OTelEnabled  bool
	OTelEndpoint string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env (if present) and the environment. It panics on an invalid configuration.
func Load() Config {
	cfg, err := LoadE()
	if err != nil {
		panic(err)
	}
	return cfg
}

func LoadE() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	cfg := Config{
		Env:            env,
		Port:           getEnvInt("PORT", 8080),
		Store:          getEnv("APP_STORE", "postgres"),
		DBURL:          getEnv("DATABASE_URL", buildDBURL()),
		DBMaxConns:     int32(getEnvInt("DB_MAX_CONNS", 5)),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", env == "dev"),

		JWTSecret:          getEnv("JWT_SECRET", devSecret(env)),
		SessionTTLDays:     getEnvInt("SESSION_TTL_DAYS", 7),
		ResetTokenTTLMins:  getEnvInt("RESET_TOKEN_TTL_MINUTES", 60),
		AppURL:             strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),

		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		AdminFirstName: getEnv("ADMIN_FIRST_NAME", "Site"),
		AdminLastName:  getEnv("ADMIN_LAST_NAME", "Admin"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 60),

		UploadDir:        getEnv("UPLOAD_DIR", "./public/uploads"),
		UploadPublicPath: getEnv("UPLOAD_PUBLIC_PATH", "/uploads"),

		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "tender-uploads"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinIOPublicURL: strings.TrimRight(os.Getenv("MINIO_PUBLIC_URL"), "/"),

		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:       os.Getenv("SMTP_FROM"),
		ContactEmailTo: os.Getenv("CONTACT_EMAIL_TO"),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

func (c Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenTTLMins) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "tenders")
	pass := getEnv("DB_PASSWORD", "tenders")
	name := getEnv("DB_NAME", "tenders")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// devSecret keeps local runs working without a JWT_SECRET; validation rejects
// the empty default everywhere else.
func devSecret(env string) string {
	if env == "dev" || env == "test" {
		return "dev-secret-change-me"
	}
	return ""
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("config: not an integer, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("config: not a boolean, using default", "key", key, "value", v)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
