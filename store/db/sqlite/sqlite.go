package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/store"
)

// ============================================================================
// SQLITE SUPPORT (Development / Single Process)
// ============================================================================
// SQLite is the default driver for local runs and the test suite.
// A single connection serializes writers; transactions therefore never
// deadlock on lock upgrades, at the cost of write concurrency.
// ============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	db      *sql.DB
	q       querier
	inTx    bool
	profile *profile.Profile
}

// NewDB opens a new instance of the SQLite database.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - No shared-cache: it's obsolete; WAL journal mode is a better solution.
	// - No foreign key constraints: it's currently disabled by default, but it's a
	// good practice to be explicit and prevent future surprises on SQLite upgrades.
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	// as it prevents locking issues.
	// - busy_timeout lets concurrent processes wait for the write lock instead of failing.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	sqliteDB.SetMaxOpenConns(1)

	if err := sqliteDB.Ping(); err != nil {
		sqliteDB.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	driver := DB{db: sqliteDB, q: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'question')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

func (d *DB) RunInTx(ctx context.Context, fn func(store.Driver) error) error {
	if d.inTx {
		return fn(d)
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(&DB{db: d.db, q: tx, inTx: true, profile: d.profile}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
