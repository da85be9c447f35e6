// Package config provides centralized default values for the survey service.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
		// godotenv.Load never overrides variables already present in the environment.
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Ignoring unreadable .env file: %v", err)
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

// getEnvSecret behaves like getEnvString without echoing the value.
func getEnvSecret(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=******", key)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	log.Printf("Config override: %s=%s", key, strings.Join(out, ","))
	return out
}

func getEnvIntList(key string, defaultValue []int) []int {
	raw := getEnvList(key, nil)
	if raw == nil {
		return defaultValue
	}
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSOrigins        []string

	// Database
	DatabasePath             string
	DatabaseURL              string
	DBBusyTimeout            time.Duration
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	SlowQueryThreshold       time.Duration

	// Uploads
	UploadDir         string
	MaxUploadBytes    int64
	ThumbnailsEnabled bool
	ThumbnailWidths   []int

	// Sessions and accounts
	SessionSecret         string
	SessionTTL            time.Duration
	SessionCookie         string
	SecureCookies         bool
	AdminPassword         string
	UserPassword          string
	ResetDefaultPasswords bool
	LoginMaxFailures      int
	LoginFailureWindow    time.Duration

	// Deployment policy
	UploadRequiresLogin bool
	DeviceSurveyor      string
	PresenceWindow      time.Duration
	PresenceFloorOne    bool
	StatsCacheTTL       time.Duration
	LiveTickInterval    time.Duration
	GinMode             string

	// Logging
	LogLevel string
	LogJSON  bool
	LogDir   string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "5000")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	CORSOrigins = getEnvList("CORS_ORIGINS", []string{"http://localhost:5000", "http://127.0.0.1:5000"})

	// Database
	DatabasePath = getEnvString("DATABASE_PATH", "data/makhaen.db")
	DatabaseURL = getEnvSecret("DATABASE_URL", "")
	DBBusyTimeout = getEnvDuration("DB_BUSY_TIMEOUT", 20*time.Second)
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 8)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 4)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 500*time.Millisecond)

	// Uploads
	UploadDir = getEnvString("UPLOAD_DIR", "static/uploads")
	MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", 32<<20)
	ThumbnailsEnabled = getEnvBool("THUMBNAILS_ENABLED", true)
	ThumbnailWidths = getEnvIntList("THUMBNAIL_WIDTHS", []int{600, 300})

	// Sessions and accounts
	SessionSecret = getEnvSecret("SESSION_SECRET", "")
	SessionTTL = getEnvDuration("SESSION_TTL", 30*24*time.Hour)
	SessionCookie = getEnvString("SESSION_COOKIE", "makhaen_session")
	SecureCookies = getEnvBool("SECURE_COOKIES", false)
	AdminPassword = getEnvSecret("ADMIN_PASSWORD", "9999")
	UserPassword = getEnvSecret("USER_PASSWORD", "8888")
	ResetDefaultPasswords = getEnvBool("RESET_DEFAULT_PASSWORDS", false)
	LoginMaxFailures = getEnvInt("LOGIN_MAX_FAILURES", 10)
	LoginFailureWindow = getEnvDuration("LOGIN_FAILURE_WINDOW", 15*time.Minute)

	// Deployment policy
	UploadRequiresLogin = getEnvBool("UPLOAD_REQUIRES_LOGIN", false)
	DeviceSurveyor = getEnvString("DEVICE_SURVEYOR", "Hardware_Box")
	PresenceWindow = getEnvDuration("PRESENCE_WINDOW", 5*time.Minute)
	PresenceFloorOne = getEnvBool("PRESENCE_FLOOR_ONE", true)
	StatsCacheTTL = getEnvDuration("STATS_CACHE_TTL", 30*time.Second)
	LiveTickInterval = getEnvDuration("LIVE_TICK_INTERVAL", 20*time.Second)
	GinMode = getEnvString("GIN_MODE", "release")

	// Logging
	LogLevel = getEnvString("LOG_LEVEL", "info")
	LogJSON = getEnvBool("LOG_JSON", true)
	LogDir = getEnvString("LOG_DIR", "")
}
