package sqlcrud

import (
	"context"
	"fmt"

	"go.llib.dev/frameless/pkg/flsql"
	"go.llib.dev/frameless/port/comproto"
)

// SchemaMigrationsTable records the applied migration steps.
const SchemaMigrationsTable = "entitykit_schema_migrations"

// Step is a single forward schema change, identified by its Version within a namespace.
type Step struct {
	Version string
	Up      string
}

// Migrator applies the Steps not yet recorded for its Namespace, in order.
type Migrator struct {
	Connection flsql.Connection
	Dialect    Dialect
	// Namespace denotes the owner of the steps, such as "catalog",
	// so migrations of different owners don't interfere.
	Namespace string
	Steps     []Step
	// EnsureStateTable is an idempotent statement creating SchemaMigrationsTable
	// with namespace and version columns.
	EnsureStateTable string
	// Lock [optional] is called in the migration transaction before any step is inspected.
	// It must block until no other migration of the same Namespace runs,
	// and keep the lock until the transaction ends.
	Lock func(ctx context.Context, conn flsql.Connection, namespace string) error
}

func (m Migrator) Migrate(ctx context.Context) (rErr error) {
	if m.Namespace == "" {
		return fmt.Errorf("missing migration namespace")
	}
	ctx, err := m.Connection.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer comproto.FinishOnePhaseCommit(&rErr, m.Connection, ctx)
	if m.Lock != nil {
		if err := m.Lock(ctx, m.Connection, m.Namespace); err != nil {
			return fmt.Errorf("[%s] migration lock: %w", m.Namespace, err)
		}
	}
	if _, err := m.Connection.ExecContext(ctx, m.EnsureStateTable); err != nil {
		return err
	}
	if err := m.validate(ctx); err != nil {
		return err
	}
	for _, step := range m.Steps {
		if err := m.up(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// validate rejects a history where a step is missing before an applied one.
func (m Migrator) validate(ctx context.Context) error {
	var (
		prevApplied bool
		prev        Step
	)
	for i, step := range m.Steps {
		applied, err := m.isApplied(ctx, step.Version)
		if err != nil {
			return err
		}
		if applied && !prevApplied && i != 0 {
			const format = "[%s] migration step is missing: %s, while the following step is already applied: %s"
			return fmt.Errorf(format, m.Namespace, prev.Version, step.Version)
		}
		prev, prevApplied = step, applied
	}
	return nil
}

func (m Migrator) up(ctx context.Context, step Step) error {
	applied, err := m.isApplied(ctx, step.Version)
	if err != nil || applied {
		return err
	}
	if _, err := m.Connection.ExecContext(ctx, step.Up); err != nil {
		return fmt.Errorf("error with migrating up %s/%s: %w", m.Namespace, step.Version, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (namespace, version) VALUES (%s, %s)`,
		SchemaMigrationsTable, m.Dialect.Placeholder(1), m.Dialect.Placeholder(2))
	_, err = m.Connection.ExecContext(ctx, query, m.Namespace, step.Version)
	return err
}

func (m Migrator) isApplied(ctx context.Context, version string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE namespace = %s AND version = %s`,
		SchemaMigrationsTable, m.Dialect.Placeholder(1), m.Dialect.Placeholder(2))
	var one int
	err := m.Connection.QueryRowContext(ctx, query, m.Namespace, version).Scan(&one)
	if m.Dialect.IsNoRows(err) {
		return false, nil
	}
	return err == nil, err
}
