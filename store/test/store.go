package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/internal/version"
	"github.com/hrygo/overflew/store"
	"github.com/hrygo/overflew/store/db"
)

// NewTestingStore returns a migrated store backed by the driver named in
// DRIVER (sqlite by default). SQLite stores live in a per-test temp dir.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(t)
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err, "failed to create db driver")

	ts := store.New(driver, p)
	require.NoError(t, ts.Migrate(ctx), "failed to migrate db")
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	driver := getDriverFromEnv()
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:    "prod",
		Data:    dir,
		Driver:  driver,
		Version: version.GetCurrentVersion("prod"),
	}
	switch driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		p.DSN = filepath.Join(dir, "overflew_test.db")
	}
	return p
}

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

// createTestingUser inserts a human account.
func createTestingUser(ctx context.Context, ts *store.Store, username string) (*store.User, error) {
	return ts.CreateUser(ctx, &store.User{
		Username: username,
		Email:    username + "@example.com",
	})
}
