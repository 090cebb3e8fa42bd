package geospatial

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate prepares a workspace schema: it enables PostGIS, creates the schema
// and its schema_migrations table, then applies any embedded .sql file not yet
// recorded. "{{schema}}" in a migration is replaced by the quoted schema name.
func Migrate(ctx context.Context, pool db.Pool, schema string) error {
	if err := ValidateName(schema); err != nil {
		return err
	}
	log := zap.L().With(zap.String("component", "geo.migrate"), zap.String("schema", schema))
	quoted := pgx.Identifier{schema}.Sanitize()

	// Advisory lock prevents concurrent init runs against one database.
	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock(8675311)"); err != nil {
		return eris.Wrap(err, "geo: acquire migration advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock(8675311)"); err != nil {
			log.Warn("geo: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if err := ensureMigrationTable(ctx, pool, quoted); err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "geo: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied, err := appliedMigrations(ctx, pool, quoted)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "geo: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))

		sql := strings.ReplaceAll(string(data), "{{schema}}", quoted)
		if _, err := pool.Exec(ctx, sql); err != nil {
			return eris.Wrapf(err, "geo: apply migration %s", name)
		}

		if _, err := pool.Exec(ctx,
			"INSERT INTO "+quoted+".schema_migrations (filename, applied_at) VALUES ($1, now())",
			name,
		); err != nil {
			return eris.Wrapf(err, "geo: record migration %s", name)
		}
	}

	return nil
}

func ensureMigrationTable(ctx context.Context, pool db.Pool, quoted string) error {
	sql := `
		CREATE SCHEMA IF NOT EXISTS ` + quoted + `;
		CREATE TABLE IF NOT EXISTS ` + quoted + `.schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "geo: ensure migration table")
	}
	return nil
}

func appliedMigrations(ctx context.Context, pool db.Pool, quoted string) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM "+quoted+".schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "geo: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "geo: scan migration row")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
