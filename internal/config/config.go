package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	RedisURL     string
	StoreTimeout time.Duration // deadline applied to every ephemeral-store round trip

	UserStore      string // "dynamo" | "postgres"
	PostgresDSN    string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string

	Tokens TokenLifetimes
	Flows  FlowLifetimes
	Cookie CookieSettings

	ClientTypeHeader   string
	RefreshTokenHeader string

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	MailQueue       string
	MailConcurrency int

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64
	RateLimitBurst int
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users string
}

// TokenLifetimes configures the credential pair.
type TokenLifetimes struct {
	Access  time.Duration
	Refresh time.Duration
}

// FlowLifetimes configures verification codes and flow tokens.
type FlowLifetimes struct {
	Code                 time.Duration
	Registration         time.Duration
	RegistrationVerified time.Duration
	Login                time.Duration
}

// CookieSettings configures web credential delivery.
type CookieSettings struct {
	Domain string
	Secure bool
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		RedisURL:     getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 2*time.Second),

		UserStore:      getEnv("USER_STORE", "dynamo"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users: getEnv("DYNAMO_TABLE_USERS", "users"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTIssuer:         getEnv("JWT_ISSUER", "go-api-auth"),

		Tokens: TokenLifetimes{
			Access:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			Refresh: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		Flows: FlowLifetimes{
			Code:                 getEnvDuration("VERIFY_CODE_TTL", 10*time.Minute),
			Registration:         getEnvDuration("REGISTRATION_TTL", 15*time.Minute),
			RegistrationVerified: getEnvDuration("REGISTRATION_VERIFIED_TTL", 30*time.Minute),
			Login:                getEnvDuration("LOGIN_FLOW_TTL", 5*time.Minute),
		},
		Cookie: CookieSettings{
			Domain: getEnv("COOKIE_DOMAIN", "localhost"),
			Secure: getEnvBool("COOKIE_SECURE", true),
		},

		ClientTypeHeader:   getEnv("CLIENT_TYPE_HEADER", "X-Client-Type"),
		RefreshTokenHeader: getEnv("REFRESH_TOKEN_HEADER", "X-Refresh-Token"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailQueue:       getEnv("MAIL_QUEUE", "mail"),
		MailConcurrency: getEnvInt("MAIL_CONCURRENCY", 4),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m", "168h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
