package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	MinIO     MinIOConfig
	CORS      CORSConfig
	SMTP      SMTPConfig
	Google    GoogleConfig
	Directory DirectoryConfig
	Worker    WorkerConfig
	Cron      CronConfig
}

type AppConfig struct {
	Env  string
	Port string
	// ManageURL is linked from every e-mail sent to borrowers
	ManageURL   string
	Superadmins []string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (d DBConfig) DSN() string {
	return "host=" + d.Host +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" port=" + d.Port +
		" sslmode=" + d.SSLMode +
		" TimeZone=UTC"
}

// URL returns the PostgreSQL connection URL (for golang-migrate)
func (d DBConfig) URL() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.Name + "?sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// StorageConfig selects where backups are written: "minio" or "gcs"
type StorageConfig struct {
	Backend            string
	GCSCredentialsFile string
}

type MinIOConfig struct {
	Endpoint  string
	PublicURL string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type CORSConfig struct {
	Origins []string
	// ExtensionIDs are Chrome extension IDs allowed to call the API
	ExtensionIDs []string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type GoogleConfig struct {
	ClientID string
}

type DirectoryConfig struct {
	CustomerID      string
	CredentialsFile string
	AdminEmail      string
}

type WorkerConfig struct {
	Concurrency int
	MaxAttempts int
	Deadline    time.Duration
}

// CronConfig holds the schedules of the periodic jobs.
// An empty schedule disables the job.
type CronConfig struct {
	Token     string
	Reminders string
	Audit     string
	Backup    string
	RoleSync  string
}

// Load reads configuration from .env file and environment variables
func Load() *Config {
	// Load .env file (ignore error if not exists - e.g. in Docker)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading from environment variables")
	}

	return &Config{
		App: AppConfig{
			Env:         getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			ManageURL:   getEnv("APP_MANAGE_URL", "http://localhost:3000"),
			Superadmins: splitList(getEnv("APP_SUPERADMINS", "")),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "loaner"),
			Password: getEnv("DB_PASSWORD", "loaner"),
			Name:     getEnv("DB_NAME", "loaner"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default-secret"),
			Expiry: getDuration("JWT_EXPIRY", 24*time.Hour),
		},
		Storage: StorageConfig{
			Backend:            getEnv("STORAGE_BACKEND", "minio"),
			GCSCredentialsFile: getEnv("STORAGE_GCS_CREDENTIALS_FILE", ""),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		},
		CORS: CORSConfig{
			Origins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
			ExtensionIDs: splitList(getEnv("CHROME_EXTENSION_IDS", "")),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "mailpit"),
			Port:     getEnv("SMTP_PORT", "1025"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "loaner@example.com"),
			FromName: getEnv("SMTP_FROM_NAME", "Grab n Go"),
		},
		Google: GoogleConfig{
			ClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		Directory: DirectoryConfig{
			CustomerID:      getEnv("DIRECTORY_CUSTOMER_ID", "my_customer"),
			CredentialsFile: getEnv("DIRECTORY_CREDENTIALS_FILE", "service-account.json"),
			AdminEmail:      getEnv("DIRECTORY_ADMIN_EMAIL", ""),
		},
		Worker: WorkerConfig{
			Concurrency: getInt("WORKER_CONCURRENCY", 4),
			MaxAttempts: getInt("WORKER_MAX_ATTEMPTS", 5),
			Deadline:    getDuration("WORKER_DEADLINE", 60*time.Second),
		},
		Cron: CronConfig{
			Token:     getEnv("CRON_TOKEN", ""),
			Reminders: getEnv("CRON_REMINDERS", "@every 1h"),
			Audit:     getEnv("CRON_AUDIT", "@every 1h"),
			Backup:    getEnv("CRON_BACKUP", "0 3 * * *"),
			RoleSync:  getEnv("CRON_ROLE_SYNC", "0 * * * *"),
		},
	}
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
