package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// AppName is the application name
	AppName = "FarmDB"

	// AppVersion is the current version
	AppVersion = "1.0.0"

	// AppBundleID is the macOS bundle identifier
	AppBundleID = "com.farmdb.client"

	// DBFileName is the local SQLite file name
	DBFileName = "farmdb_client.db"

	// DefaultAPIBaseURL is the FarmDB server used when FARMDB_API_URL is unset
	DefaultAPIBaseURL = "http://localhost:5700"

	// HTTPTimeout bounds every auth API call
	HTTPTimeout = 30 * time.Second

	// AccessTokenLifetime is the server default for access tokens (expires_in=900)
	AccessTokenLifetime = 15 * time.Minute

	// RenewFraction is how much of the access token lifetime may elapse
	// before renewal fires (~93%, 14 minutes for a 15 minute token)
	RenewFraction = 0.93
)

// APIBaseURL returns the FarmDB server base URL, honoring FARMDB_API_URL
func APIBaseURL() string {
	if override := strings.TrimSpace(os.Getenv("FARMDB_API_URL")); override != "" {
		return strings.TrimRight(override, "/")
	}
	return DefaultAPIBaseURL
}

// DataDir returns the app data root directory
func DataDir() string {
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+strings.ToLower(AppName))
}

// DBPath returns the local SQLite file path
func DBPath() string {
	return filepath.Join(DataDir(), DBFileName)
}

// LogDir returns the log directory
func LogDir() string {
	return filepath.Join(DataDir(), "logs")
}

// EnsureDataDirs creates the required directories if missing
func EnsureDataDirs() error {
	dirs := []string{
		DataDir(),
		LogDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}

// RenewInterval derives the renewal delay from an access token lifetime.
// Falls back to the server default lifetime when the input is not usable.
func RenewInterval(lifetime time.Duration) time.Duration {
	if lifetime <= 0 {
		lifetime = AccessTokenLifetime
	}
	interval := time.Duration(float64(lifetime) * RenewFraction)
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}
