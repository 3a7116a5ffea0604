// Package migrate owns the postgres schema. Migrations are goose SQL files
// embedded in the binary so every command runs the same set.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the source directory used by create and validate.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Files returns the embedded migration files rooted at the migrations dir.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrate: embedded migrations: %v", err))
	}
	return sub
}

// Step is one applied or reverted migration.
type Step struct {
	Version   int64
	Path      string
	Direction string
	Empty     bool
}

// Migrator runs the embedded migrations against a postgres database.
type Migrator struct {
	provider *goose.Provider
}

// New builds a migrator. The schema uses postgres-only features (uuid[],
// jsonb, partial indexes) so no other dialect is supported.
func New(db *sql.DB) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, Files())
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

func (m *Migrator) Up(ctx context.Context) ([]Step, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return steps(results), fmt.Errorf("goose up: %w", err)
	}
	return steps(results), nil
}

// Down reverts the latest applied migration.
func (m *Migrator) Down(ctx context.Context) ([]Step, error) {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return steps([]*goose.MigrationResult{result}), nil
}

// Version returns the current schema version, 0 for an empty database.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// Status lists every known migration with its state, e.g. "applied".
func (m *Migrator) Status(ctx context.Context) (map[int64]string, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make(map[int64]string, len(statuses))
	for _, st := range statuses {
		if st == nil || st.Source == nil {
			continue
		}
		out[st.Source.Version] = string(st.State)
	}
	return out, nil
}

// MigrateTo moves the schema up or down to target, a YYYYMMDDHHMMSS version.
func (m *Migrator) MigrateTo(ctx context.Context, target string) ([]Step, error) {
	version, err := ParseVersion(target)
	if err != nil {
		return nil, err
	}
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err := m.provider.UpTo(ctx, version)
		if err != nil {
			return steps(results), fmt.Errorf("goose up-to %d: %w", version, err)
		}
		return steps(results), nil
	default:
		results, err := m.provider.DownTo(ctx, version)
		if err != nil {
			return steps(results), fmt.Errorf("goose down-to %d: %w", version, err)
		}
		return steps(results), nil
	}
}

// ParseVersion validates a YYYYMMDDHHMMSS version string.
func ParseVersion(raw string) (int64, error) {
	if !versionRe.MatchString(raw) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return v, nil
}

func steps(results []*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Step{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Empty:     r.Empty,
		})
	}
	return out
}
