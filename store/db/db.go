package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/store"
	"github.com/hrygo/overflew/store/db/postgres"
	"github.com/hrygo/overflew/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// PostgreSQL: production deployments with several workers.
// SQLite: local runs, demo mode and the test suite.
// Both drivers must implement every store.Driver method.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
