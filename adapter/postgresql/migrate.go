package postgresql

import (
	"context"

	"github.com/binaryburst/entitykit/internal/sqlcrud"
	"go.llib.dev/frameless/pkg/flsql"
)

type Step = sqlcrud.Step

const queryEnsureSchemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS ` + sqlcrud.SchemaMigrationsTable + ` (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	namespace  TEXT NOT NULL,
	version    TEXT NOT NULL,
	UNIQUE (namespace, version)
);`

// queryLockNamespace takes a transaction level advisory lock,
// released by the commit or rollback of the migration.
const queryLockNamespace = `SELECT pg_advisory_xact_lock(hashtext($1::text))`

func lockNamespace(ctx context.Context, conn flsql.Connection, namespace string) error {
	_, err := conn.ExecContext(ctx, queryLockNamespace, sqlcrud.SchemaMigrationsTable+":"+namespace)
	return err
}

// Migrate applies the steps of namespace that are not applied yet.
// Concurrent calls, even from different processes, run one after the other.
func Migrate(ctx context.Context, conn Connection, namespace string, steps ...Step) error {
	return sqlcrud.Migrator{
		Connection:       conn,
		Dialect:          Dialect,
		Namespace:        namespace,
		Steps:            steps,
		EnsureStateTable: queryEnsureSchemaMigrationsTable,
		Lock:             lockNamespace,
	}.Migrate(ctx)
}
