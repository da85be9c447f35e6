package config

import "time"

// Settings is an immutable snapshot of the configuration handed to services.
// Tests build it directly instead of going through the environment.
type Settings struct {
	DatabasePath       string
	DatabaseURL        string
	DBBusyTimeout      time.Duration
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	SlowQueryThreshold time.Duration

	UploadDir         string
	MaxUploadBytes    int64
	ThumbnailsEnabled bool
	ThumbnailWidths   []int

	SessionSecret         string
	SessionTTL            time.Duration
	SessionCookie         string
	SecureCookies         bool
	AdminPassword         string
	UserPassword          string
	ResetDefaultPasswords bool
	LoginMaxFailures      int
	LoginFailureWindow    time.Duration

	UploadRequiresLogin bool
	DeviceSurveyor      string
	PresenceWindow      time.Duration
	PresenceFloorOne    bool
	StatsCacheTTL       time.Duration
	LiveTickInterval    time.Duration
	CORSOrigins         []string
}

// Snapshot captures the current package-level configuration.
func Snapshot() *Settings {
	return &Settings{
		DatabasePath:       DatabasePath,
		DatabaseURL:        DatabaseURL,
		DBBusyTimeout:      DBBusyTimeout,
		DBMaxOpenConns:     DBMaxOpenConns,
		DBMaxIdleConns:     DBMaxIdleConns,
		DBConnMaxLifetime:  time.Duration(DBConnMaxLifetimeMinutes) * time.Minute,
		SlowQueryThreshold: SlowQueryThreshold,

		UploadDir:         UploadDir,
		MaxUploadBytes:    MaxUploadBytes,
		ThumbnailsEnabled: ThumbnailsEnabled,
		ThumbnailWidths:   append([]int(nil), ThumbnailWidths...),

		SessionSecret:         SessionSecret,
		SessionTTL:            SessionTTL,
		SessionCookie:         SessionCookie,
		SecureCookies:         SecureCookies,
		AdminPassword:         AdminPassword,
		UserPassword:          UserPassword,
		ResetDefaultPasswords: ResetDefaultPasswords,
		LoginMaxFailures:      LoginMaxFailures,
		LoginFailureWindow:    LoginFailureWindow,

		UploadRequiresLogin: UploadRequiresLogin,
		DeviceSurveyor:      DeviceSurveyor,
		PresenceWindow:      PresenceWindow,
		PresenceFloorOne:    PresenceFloorOne,
		StatsCacheTTL:       StatsCacheTTL,
		LiveTickInterval:    LiveTickInterval,
		CORSOrigins:         append([]string(nil), CORSOrigins...),
	}
}
