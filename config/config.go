package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultCapturesSubDir   = "captures"
	DefaultThumbnailsSubDir = "thumbnails"
)

const DefaultReportCacheTTL = 10 * time.Minute

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const (
	MediaBackendLocal = "local"
	MediaBackendMinIO = "minio"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// database connection; DatabaseURL is a file path for sqlite and a DSN otherwise
	DatabaseDriver  string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL     string `env:"DATABASE_URL" envDefault:"acnesense.db"`
	DBMaxOpenConns  int    `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	DBMaxIdleConns  int    `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DatabaseLogging bool   `env:"DB_LOG_QUERIES" envDefault:"false"`

	// auth
	JWTSecret          string   `env:"JWT_SECRET" envDefault:"change_me_in_production"`
	JWTExpirationHours int      `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	CookieSecure       bool     `env:"COOKIE_SECURE" envDefault:"false"` // set behind TLS

	// media storage configuration
	MediaBackend     string `env:"MEDIA_BACKEND" envDefault:"local"`
	MediaStoragePath string `env:"MEDIA_STORAGE_PATH" envDefault:"./media_storage"` // primary root for archived captures and thumbnails
	CapturesSubDir   string `env:"CAPTURES_SUBDIR" envDefault:"captures"`
	ThumbnailsSubDir string `env:"THUMBNAILS_SUBDIR" envDefault:"thumbnails"`
	CapturesPath     string // full-calculated path for archived captures
	ThumbnailsPath   string // full-calculated path for thumbnails

	MinIO MinIOConfig `envPrefix:"MINIO_"`

	// thumbnail generation settings
	ThumbnailMaxSize int `env:"THUMBNAIL_MAX_SIZE" envDefault:"300"`

	// worker settings
	ArchiveQueueSize  int `env:"ARCHIVE_QUEUE_SIZE" envDefault:"200"`
	NumArchiveWorkers int `env:"NUM_ARCHIVE_WORKERS" envDefault:"2"`

	// assembled reports are immutable, so they can be cached for a while
	ReportCacheTTL time.Duration `env:"REPORT_CACHE_TTL" envDefault:"10m"`
}

type MinIOConfig struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"acnesense"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// LoadConfig reads the configuration from the environment. godotenv should
// already have been applied by the caller.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	switch cfg.DatabaseDriver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER '%s'", cfg.DatabaseDriver)
	}

	switch cfg.MediaBackend {
	case MediaBackendLocal, MediaBackendMinIO:
	default:
		return Config{}, fmt.Errorf("unsupported MEDIA_BACKEND '%s'", cfg.MediaBackend)
	}

	absMediaStorage, err := filepath.Abs(cfg.MediaStoragePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", cfg.MediaStoragePath, err)
	}
	cfg.MediaStoragePath = absMediaStorage

	if cfg.CapturesSubDir == "" {
		cfg.CapturesSubDir = DefaultCapturesSubDir
	}
	if cfg.ThumbnailsSubDir == "" {
		cfg.ThumbnailsSubDir = DefaultThumbnailsSubDir
	}
	cfg.CapturesPath = filepath.Join(absMediaStorage, cfg.CapturesSubDir)
	cfg.ThumbnailsPath = filepath.Join(absMediaStorage, cfg.ThumbnailsSubDir)

	cfg.ThumbnailMaxSize = positiveOrDefault("THUMBNAIL_MAX_SIZE", cfg.ThumbnailMaxSize, 300)
	cfg.ArchiveQueueSize = positiveOrDefault("ARCHIVE_QUEUE_SIZE", cfg.ArchiveQueueSize, 200)
	cfg.NumArchiveWorkers = positiveOrDefault("NUM_ARCHIVE_WORKERS", cfg.NumArchiveWorkers, 2)
	cfg.JWTExpirationHours = positiveOrDefault("JWT_EXPIRATION_HOURS", cfg.JWTExpirationHours, 24)

	if cfg.ReportCacheTTL <= 0 {
		log.Printf("Warning: Invalid REPORT_CACHE_TTL '%s'. Using default %s.", cfg.ReportCacheTTL, DefaultReportCacheTTL)
		cfg.ReportCacheTTL = DefaultReportCacheTTL
	}

	return cfg, nil
}

func positiveOrDefault(envVar string, val, defaultVal int) int {
	if val <= 0 {
		log.Printf("Warning: Invalid %s '%d'. Using default %d.", envVar, val, defaultVal)
		return defaultVal
	}
	return val
}
