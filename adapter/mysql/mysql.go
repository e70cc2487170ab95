package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/binaryburst/entitykit/internal/sqlcrud"
	"github.com/go-sql-driver/mysql"
	"go.llib.dev/frameless/pkg/flsql"
)

// Connection is an sql.DB backed by go-sql-driver/mysql that keeps the current transaction in the context.
type Connection struct {
	flsql.Connection
	DB *sql.DB
}

func Connect(dsn string) (Connection, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return Connection{}, err
	}
	// UPDATE reports matched rows instead of changed rows,
	// so saving an unchanged entity isn't mistaken for a missing row.
	cfg.ClientFoundRows = true
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return Connection{}, err
	}
	db := sql.OpenDB(connector)
	// SetConnMaxLifetime is required to ensure connections are closed by the driver safely before connection is closed by MySQL server,
	// OS, or other middlewares. Since some middlewares close idle connections by 5 minutes,
	// we recommend timeout shorter than 5 minutes.
	db.SetConnMaxLifetime(time.Minute * 3)
	// SetMaxOpenConns is highly recommended to limit the number of connection used by the application.
	db.SetMaxOpenConns(10)
	// SetMaxIdleConns is recommended to be set same to db.SetMaxOpenConns().
	db.SetMaxIdleConns(10)
	return Connection{Connection: flsql.SQLConnectionAdapter(db), DB: db}, nil
}

func (c Connection) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Mapping describes how an entity is laid out in its MySQL table.
// IDs generated by the database must come from an AUTO_INCREMENT column.
type Mapping[ENT any, ID comparable] = sqlcrud.Mapping[ENT, ID]

// Repository is a crud.Repository over a MySQL table.
type Repository[ENT any, ID comparable] = sqlcrud.Repository[ENT, ID]

func NewRepository[ENT any, ID comparable](conn Connection, m Mapping[ENT, ID]) Repository[ENT, ID] {
	return Repository[ENT, ID]{Connection: conn, Mapping: m, Dialect: Dialect}
}

// errDuplicateEntry is the MySQL error number of a unique key violation.
const errDuplicateEntry = 1062

type lastInsertIDResult interface {
	LastInsertId() (int64, error)
}

var Dialect = sqlcrud.Dialect{
	Placeholder: func(int) string { return "?" },

	InsertReturningID: func(ctx context.Context, c flsql.Queryable, query, _ string, args []any, dst any) error {
		result, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		r, ok := result.(lastInsertIDResult)
		if !ok {
			return fmt.Errorf("mysql: %T doesn't report the last insert id", result)
		}
		id, err := r.LastInsertId()
		if err != nil {
			return err
		}
		rv := reflect.ValueOf(dst).Elem()
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			rv.SetInt(id)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			rv.SetUint(uint64(id))
		default:
			return fmt.Errorf("mysql: AUTO_INCREMENT id can't be stored in %s, provide Mapping.NewID", rv.Type())
		}
		return nil
	},

	IsUniqueViolation: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
	},

	IsNoRows: func(err error) bool {
		return errors.Is(err, sql.ErrNoRows)
	},
}
