package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Sheets   SheetsConfig
	Mail     MailConfig
	Paystack PaystackConfig
	Referral ReferralConfig
	Outbox   OutboxConfig
	CORS     CORSConfig
	Firebase FirebaseConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// FrontendURL is used to build reset and verification links.
	FrontendURL string
	RateLimit   int
	RateWindow  time.Duration
	// TrustedProxies may set X-Forwarded-For; empty means the socket address is the client IP.
	TrustedProxies []string
}

// DatabaseConfig holds the MySQL connection for the outbox and webhook dedupe tables.
// An empty DSN keeps both in memory.
type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	ActionExpiry time.Duration
	Issuer       string
}

type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Admin    string
}

type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	// VerifyManual checks admin-entered purchase references against the Paystack API.
	VerifyManual bool
}

type ReferralConfig struct {
	VisitPoints   float64
	SharePoints   float64
	BlockSharedIP bool
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type FirebaseConfig struct {
	CredentialsFile string
	BroadcastTopic  string
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8000"),
			Env:            getEnv("APP_ENV", "development"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
			RateLimit:      getEnvAsInt("RATE_LIMIT", 120),
			RateWindow:     getEnvAsDuration("RATE_WINDOW", time.Minute),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES", nil, ","),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", ""),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("AUTH_SECRET", "change-me-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", time.Hour),
			ActionExpiry: getEnvAsDuration("JWT_ACTION_EXPIRY", time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "enchiridion"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   getEnv("SPREADSHEET_ID", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", "service_account.json"),
		},
		Mail: MailConfig{
			Host:     getEnv("MAIL_SERVER", "smtp.gmail.com"),
			Port:     getEnvAsInt("MAIL_PORT", 587),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "noreply@enchiridion.ng"),
			Admin:    getEnv("ADMIN_EMAIL", ""),
		},
		Paystack: PaystackConfig{
			SecretKey:    getEnv("PAYSTACK_SECRET_KEY", ""),
			BaseURL:      getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			VerifyManual: getEnvAsBool("PAYSTACK_VERIFY_MANUAL", true),
		},
		Referral: ReferralConfig{
			VisitPoints:   getEnvAsFloat("REFERRAL_VISIT_POINTS", 0.1),
			SharePoints:   getEnvAsFloat("REFERRAL_SHARE_POINTS", 0),
			BlockSharedIP: getEnvAsBool("REFERRAL_BLOCK_SHARED_IP", true),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 20),
			MaxAttempts:  getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 6),
			BaseBackoff:  getEnvAsDuration("OUTBOX_BASE_BACKOFF", 10*time.Second),
			MaxBackoff:   getEnvAsDuration("OUTBOX_MAX_BACKOFF", 30*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ORIGINS", []string{"http://localhost:3000"}, ","),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS", ""),
			BroadcastTopic:  getEnv("FCM_BROADCAST_TOPIC", "global"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string, sep string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
