package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/store"
)

func TestMigrate_AppliesPendingPatches(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	current, err := ts.GetCurrentSchemaVersion()
	require.NoError(t, err)
	require.Equal(t, "0.3.1", current)
	require.Equal(t, current, schemaVersion(ctx, t, ts))
	require.True(t, hasIndex(ctx, t, ts, "idx_comment_creator_id"))

	// Wind the database back to the 0.3.0 schema.
	_, err = ts.GetDriver().GetDB().ExecContext(ctx, "DROP INDEX idx_comment_creator_id")
	require.NoError(t, err)
	setSchemaVersion(ctx, t, ts, "0.3.0")

	require.NoError(t, ts.Migrate(ctx))
	require.True(t, hasIndex(ctx, t, ts, "idx_comment_creator_id"))
	require.Equal(t, "0.3.1", schemaVersion(ctx, t, ts))

	// Already current: nothing to apply.
	require.NoError(t, ts.Migrate(ctx))
	require.Equal(t, "0.3.1", schemaVersion(ctx, t, ts))
}

func TestMigrate_RefusesDowngrade(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	setSchemaVersion(ctx, t, ts, "9.9.9")

	err := ts.Migrate(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot downgrade")
}

func schemaVersion(ctx context.Context, t *testing.T, ts *store.Store) string {
	t.Helper()
	key := store.SiteSettingSchemaVersion
	list, err := ts.GetDriver().ListSiteSettings(ctx, &store.FindSiteSetting{Key: &key})
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0].Value
}

func setSchemaVersion(ctx context.Context, t *testing.T, ts *store.Store, version string) {
	t.Helper()
	_, err := ts.UpsertSiteSetting(ctx, &store.SiteSetting{Key: store.SiteSettingSchemaVersion, Value: version})
	require.NoError(t, err)
}

func hasIndex(ctx context.Context, t *testing.T, ts *store.Store, name string) bool {
	t.Helper()
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?"
	if getDriverFromEnv() == "postgres" {
		query = "SELECT COUNT(*) FROM pg_indexes WHERE indexname = $1"
	}
	var count int
	require.NoError(t, ts.GetDriver().GetDB().QueryRowContext(ctx, query, name).Scan(&count))
	return count > 0
}
