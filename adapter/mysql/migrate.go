package mysql

import (
	"context"

	"github.com/binaryburst/entitykit/internal/sqlcrud"
)

type Step = sqlcrud.Step

const queryEnsureSchemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS ` + sqlcrud.SchemaMigrationsTable + ` (
	id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
	created_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP,
	namespace  VARCHAR(255) NOT NULL,
	version    VARCHAR(255) NOT NULL,
	UNIQUE KEY namespace_version (namespace, version)
);`

// Migrate applies the steps of namespace that are not applied yet.
// MySQL commits DDL statements implicitly, so a failing step leaves the earlier ones applied.
func Migrate(ctx context.Context, conn Connection, namespace string, steps ...Step) error {
	return sqlcrud.Migrator{
		Connection:       conn,
		Dialect:          Dialect,
		Namespace:        namespace,
		Steps:            steps,
		EnsureStateTable: queryEnsureSchemaMigrationsTable,
	}.Migrate(ctx)
}
