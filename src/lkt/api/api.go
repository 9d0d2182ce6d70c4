// Package api serves recorded runs, their results and archived logs over
// a read-only JSON API.
package api

import (
	"github.com/bitswalk/lkt/src/common/logs"
	"github.com/bitswalk/lkt/src/common/version"
	"github.com/bitswalk/lkt/src/lkt/archive"
	"github.com/bitswalk/lkt/src/lkt/db"
)

var (
	log         *logs.Logger
	versionInfo = version.New()
)

// SetLogger sets the logger for the api package
func SetLogger(l *logs.Logger) {
	log = l
}

// SetVersionInfo sets the build information reported by /v1/version
func SetVersionInfo(v *version.Info) {
	if v != nil {
		versionInfo = v
	}
}

// Config holds the dependencies of the API
type Config struct {
	Runs *db.RunRepository
	// Archive is nil when log archiving is not configured
	Archive *archive.Archiver
	// RateLimiter is nil when requests are not limited
	RateLimiter *RateLimiter
}

// API serves the run history
type API struct {
	runs    *db.RunRepository
	archive *archive.Archiver
	limiter *RateLimiter
}

// New creates a new API instance
func New(cfg Config) *API {
	return &API{
		runs:    cfg.Runs,
		archive: cfg.Archive,
		limiter: cfg.RateLimiter,
	}
}
