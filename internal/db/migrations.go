package db

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	embeddedmigrations "github.com/terraincognita07/stepdash/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrationNamePattern = regexp.MustCompile(`^(\d+)_[a-z0-9_]+\.sql$`)

type schemaMigration struct {
	Version int
	Name    string
	SQL     string
}

type schemaMigrator struct {
	database *gorm.DB
	source   fs.FS
	logger   *zap.Logger
}

func newSchemaMigrator(database *gorm.DB, logger *zap.Logger) *schemaMigrator {
	return &schemaMigrator{database: database, source: embeddedmigrations.Files, logger: logger}
}

// Apply runs every migration not yet recorded in schema_migrations.
func (migrator *schemaMigrator) Apply() error {
	const createTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	if err := migrator.database.Exec(createTableSQL).Error; err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	pending, err := migrator.Pending()
	if err != nil {
		return err
	}
	for _, migration := range pending {
		if err := migrator.run(migration); err != nil {
			return err
		}
		migrator.logger.Info("applied migration", zap.Int("version", migration.Version), zap.String("name", migration.Name))
	}
	return nil
}

func (migrator *schemaMigrator) Pending() ([]schemaMigration, error) {
	all, err := readMigrations(migrator.source)
	if err != nil {
		return nil, err
	}

	var applied []int
	if err := migrator.database.Table("schema_migrations").Pluck("version", &applied).Error; err != nil {
		return nil, fmt.Errorf("load applied migration versions: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}

	pending := make([]schemaMigration, 0, len(all))
	for _, migration := range all {
		if !done[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

func (migrator *schemaMigrator) run(migration schemaMigration) error {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return fmt.Errorf("migration %s: %w", migration.Name, errors.New("no SQL statements"))
	}

	return migrator.database.Transaction(func(tx *gorm.DB) error {
		for _, statement := range statements {
			if err := tx.Exec(statement).Error; err != nil {
				return fmt.Errorf("execute migration %s: %w", migration.Name, err)
			}
		}
		if err := tx.Exec(
			`INSERT INTO schema_migrations(version, name) VALUES (?, ?)`,
			migration.Version,
			migration.Name,
		).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", migration.Name, err)
		}
		return nil
	})
}

func readMigrations(source fs.FS) ([]schemaMigration, error) {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	migrations := make([]schemaMigration, 0, len(entries))
	byVersion := make(map[int]string, len(entries))
	for _, entry := range entries {
		matches := migrationNamePattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", entry.Name(), err)
		}
		if previous, exists := byVersion[version]; exists {
			return nil, fmt.Errorf("duplicate migration version %d in %s and %s", version, previous, entry.Name())
		}
		byVersion[version] = entry.Name()

		body, err := fs.ReadFile(source, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, schemaMigration{Version: version, Name: entry.Name(), SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func splitStatements(sqlText string) []string {
	statements := make([]string, 0)
	for _, part := range strings.Split(sqlText, ";") {
		if statement := strings.TrimSpace(part); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}
