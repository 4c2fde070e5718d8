package database

import (
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migrator applies versioned .sql migration files from a filesystem
// (typically an embed.FS), tracking applied versions in schema_migrations.
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

func (m *Migrator) ensureVersionTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// Run applies all pending migrations found under dir in fsys, in version
// order. Migration files are named NNN_description.sql.
func (m *Migrator) Run(fsys fs.FS, dir string) error {
	if err := m.ensureVersionTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	type migration struct {
		version int
		name    string
		path    string
	}
	var pending []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		parts := strings.SplitN(strings.TrimSuffix(name, ".sql"), "_", 2)
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("migration %s has no numeric version prefix: %w", name, err)
		}
		if applied[version] {
			continue
		}
		path := name
		if dir != "." {
			path = dir + "/" + name
		}
		pending = append(pending, migration{version: version, name: name, path: path})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })

	for _, mig := range pending {
		content, err := fs.ReadFile(fsys, mig.path)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", mig.name, err)
		}
		m.logger.Info("Applying migration", zap.Int("version", mig.version), zap.String("name", mig.name))

		if _, err := m.db.Exec(string(content)); err != nil {
			return fmt.Errorf("migration %s failed: %w", mig.name, err)
		}
		if _, err := m.db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			mig.version, mig.name,
		); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", mig.name, err)
		}
	}

	return nil
}
