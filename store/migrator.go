package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/overflew/internal/version"
)

// Migration layout:
//
//	store/migration/{driver}/LATEST.sql                   full schema for fresh databases
//	store/migration/{driver}/{minor}/NN__description.sql  incremental patches
//
// The applied schema version lives in the schema_version site setting.

//go:embed migration
var migrationFS embed.FS

const (
	// MigrateFileNameSplit is the split character between the patch version and the description in the migration file name.
	// For example, "1__create_table.sql".
	MigrateFileNameSplit = "__"
	// LatestSchemaFileName is the name of the latest schema file.
	LatestSchemaFileName = "LATEST.sql"

	defaultSchemaVersion = "0.0.0"

	modeProd = "prod"
	modeDemo = "demo"
)

func isVersionEmpty(schemaVersion string) bool {
	return schemaVersion == "" || schemaVersion == defaultSchemaVersion
}

func shouldApplyMigration(fileVersion, currentDBVersion, targetVersion string) bool {
	if isVersionEmpty(currentDBVersion) {
		currentDBVersion = defaultSchemaVersion
	}
	return version.IsVersionGreaterThan(fileVersion, currentDBVersion) &&
		version.IsVersionGreaterOrEqualThan(targetVersion, fileVersion)
}

// Migrate brings the schema to the current version, writes default site settings
// and, in demo mode, seeds the bundled personas.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.preMigrate(ctx); err != nil {
		return errors.Wrap(err, "failed to pre-migrate")
	}

	if s.profile.Mode == modeProd {
		dbVersion, err := s.getSchemaVersionSetting(ctx)
		if err != nil {
			return err
		}
		currentSchemaVersion, err := s.GetCurrentSchemaVersion()
		if err != nil {
			return errors.Wrap(err, "failed to get current schema version")
		}
		if !isVersionEmpty(dbVersion) && version.IsVersionGreaterThan(dbVersion, currentSchemaVersion) {
			slog.Error("cannot downgrade schema version",
				slog.String("databaseVersion", dbVersion),
				slog.String("currentVersion", currentSchemaVersion),
			)
			return errors.Errorf("cannot downgrade schema version from %s to %s", dbVersion, currentSchemaVersion)
		}
		if isVersionEmpty(dbVersion) || version.IsVersionGreaterThan(currentSchemaVersion, dbVersion) {
			if err := s.applyMigrations(ctx, dbVersion, currentSchemaVersion); err != nil {
				return errors.Wrap(err, "failed to apply migrations")
			}
		}
	}

	if err := s.InitSiteSettings(ctx); err != nil {
		return errors.Wrap(err, "failed to init site settings")
	}

	if s.profile.Mode == modeDemo {
		if _, err := s.SeedPersonas(ctx); err != nil {
			return errors.Wrap(err, "failed to seed")
		}
	}
	return nil
}

func (s *Store) applyMigrations(ctx context.Context, currentSchemaVersion, targetSchemaVersion string) error {
	filePaths, err := fs.Glob(migrationFS, fmt.Sprintf("%s*/*.sql", s.getMigrationBasePath()))
	if err != nil {
		return errors.Wrap(err, "failed to read migration files")
	}
	sort.Strings(filePaths)

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	slog.Info("start migration",
		slog.String("currentSchemaVersion", currentSchemaVersion),
		slog.String("targetSchemaVersion", targetSchemaVersion))

	migrationsApplied := 0
	for _, filePath := range filePaths {
		fileSchemaVersion, err := getSchemaVersionOfMigrateScript(filePath)
		if err != nil {
			return errors.Wrap(err, "failed to get schema version of migrate script")
		}
		if !shouldApplyMigration(fileSchemaVersion, currentSchemaVersion, targetSchemaVersion) {
			continue
		}

		slog.Info("applying migration", slog.String("file", filePath), slog.String("version", fileSchemaVersion))
		bytes, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file: %s", filePath)
		}
		if err := s.execute(ctx, tx, string(bytes)); err != nil {
			return errors.Wrapf(err, "failed to execute migration %s", filePath)
		}
		migrationsApplied++
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration transaction")
	}
	slog.Info("migration completed", slog.Int("migrationsApplied", migrationsApplied))

	return s.setSchemaVersionSetting(ctx, targetSchemaVersion)
}

// preMigrate applies LATEST.sql to a database that has no schema yet.
func (s *Store) preMigrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if initialized {
		return nil
	}

	filePath := s.getMigrationBasePath() + LatestSchemaFileName
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Errorf("failed to read latest schema file: %s", err)
	}
	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	slog.Info("initializing new database with latest schema", slog.String("file", filePath))
	if err := s.execute(ctx, tx, string(bytes)); err != nil {
		return errors.Errorf("failed to execute SQL file %s, err %s", filePath, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	schemaVersion, err := s.GetCurrentSchemaVersion()
	if err != nil {
		return errors.Wrap(err, "failed to get current schema version")
	}
	slog.Info("database initialized successfully", slog.String("schemaVersion", schemaVersion))
	return s.setSchemaVersionSetting(ctx, schemaVersion)
}

func (s *Store) getMigrationBasePath() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

// GetCurrentSchemaVersion derives the schema version this binary expects from the
// highest patch file of the current minor version.
func (s *Store) GetCurrentSchemaVersion() (string, error) {
	currentVersion := version.GetCurrentVersion(s.profile.Mode)
	minorVersion := version.GetMinorVersion(currentVersion)
	filePaths, err := fs.Glob(migrationFS, fmt.Sprintf("%s%s/*.sql", s.getMigrationBasePath(), minorVersion))
	if err != nil {
		return "", errors.Wrap(err, "failed to read migration files")
	}

	sort.Strings(filePaths)
	if len(filePaths) == 0 {
		return fmt.Sprintf("%s.0", minorVersion), nil
	}
	return getSchemaVersionOfMigrateScript(filePaths[len(filePaths)-1])
}

// getSchemaVersionOfMigrateScript maps "migration/sqlite/0.3/01__x.sql" to "0.3.2".
func getSchemaVersionOfMigrateScript(filePath string) (string, error) {
	elements := strings.Split(filepath.ToSlash(filePath), "/")
	if len(elements) < 2 {
		return "", errors.Errorf("invalid file path: %s", filePath)
	}
	minorVersion := elements[len(elements)-2]
	rawPatchVersion := strings.Split(elements[len(elements)-1], MigrateFileNameSplit)[0]
	patchVersion, err := strconv.Atoi(rawPatchVersion)
	if err != nil {
		return "", errors.Wrapf(err, "failed to convert patch version to int: %s", rawPatchVersion)
	}
	return fmt.Sprintf("%s.%d", minorVersion, patchVersion+1), nil
}

// execute runs a SQL script inside tx. PostgreSQL gets one statement per call.
func (s *Store) execute(ctx context.Context, tx *sql.Tx, script string) error {
	if s.profile.Driver != "postgres" {
		_, err := tx.ExecContext(ctx, script)
		return errors.Wrap(err, "failed to execute statement")
	}
	for i, stmt := range splitSQL(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute statement %d: %s", i+1, stmt)
		}
	}
	return nil
}

// splitSQL splits a script on semicolons outside single-quoted strings, dropping "--" comments.
func splitSQL(script string) []string {
	var statements []string
	var current strings.Builder
	inQuote := false

	for _, line := range strings.Split(script, "\n") {
		for i := 0; i < len(line); i++ {
			ch := line[i]
			if !inQuote && ch == '-' && i+1 < len(line) && line[i+1] == '-' {
				break
			}
			if ch == '\'' {
				inQuote = !inQuote
			}
			if ch == ';' && !inQuote {
				if stmt := strings.TrimSpace(current.String()); stmt != "" {
					statements = append(statements, stmt)
				}
				current.Reset()
				continue
			}
			current.WriteByte(ch)
		}
		current.WriteByte('\n')
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

func (s *Store) getSchemaVersionSetting(ctx context.Context) (string, error) {
	key := SiteSettingSchemaVersion
	list, err := s.driver.ListSiteSettings(ctx, &FindSiteSetting{Key: &key})
	if err != nil {
		return "", errors.Wrap(err, "failed to get schema version")
	}
	if len(list) == 0 {
		return "", nil
	}
	return list[0].Value, nil
}

func (s *Store) setSchemaVersionSetting(ctx context.Context, schemaVersion string) error {
	_, err := s.UpsertSiteSetting(ctx, &SiteSetting{
		Key:         SiteSettingSchemaVersion,
		Value:       schemaVersion,
		Description: "Applied database schema version",
	})
	return errors.Wrap(err, "failed to update current schema version")
}
