package dbassert

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Dialect covers the SQL differences between the supported databases.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectMySQL
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgresql"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// QuoteIdent quotes an already validated identifier. Schema-qualified
// names are quoted per part.
func (d Dialect) QuoteIdent(name string) string {
	q := `"`
	if d == DialectMySQL {
		q = "`"
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = q + p + q
	}
	return strings.Join(parts, ".")
}

// Placeholder returns the n-th (1-based) bind placeholder.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Backend runs queries for a [Helper].
type Backend interface {
	// Query returns the rows and the column names in result order.
	Query(ctx context.Context, query string, args ...any) ([]Row, []string, error)
	// Exec returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Dialect() Dialect
	Close() error
}

// ===========================================================================
// pgx
// ===========================================================================

// PgxQuerier is satisfied by *postgres.Client from pkg/clients/postgres.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgxBackend struct {
	q     PgxQuerier
	close func()
}

// NewPgxBackend returns a PostgreSQL backend. closeFn may be nil.
func NewPgxBackend(q PgxQuerier, closeFn func()) Backend {
	return &pgxBackend{q: q, close: closeFn}
}

func (b *pgxBackend) Query(ctx context.Context, query string, args ...any) ([]Row, []string, error) {
	rows, err := b.q.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, sserr.Wrap(err, sserr.CodeInternalDatabase, "dbassert: cannot read row")
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, sserr.Wrap(err, sserr.CodeInternalDatabase, "dbassert: row iteration failed")
	}
	return out, cols, nil
}

func (b *pgxBackend) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := b.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (b *pgxBackend) Dialect() Dialect { return DialectPostgres }

func (b *pgxBackend) Close() error {
	if b.close != nil {
		b.close()
	}
	return nil
}

// ===========================================================================
// database/sql
// ===========================================================================

type sqlBackend struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLBackend returns a backend over a database/sql handle (MySQL or
// SQLite).
func NewSQLBackend(db *sql.DB, dialect Dialect) Backend {
	return &sqlBackend{db: db, dialect: dialect}
}

func (b *sqlBackend) Query(ctx context.Context, query string, args ...any) ([]Row, []string, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, wrapError(err, "dbassert: query failed")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, wrapError(err, "dbassert: cannot read columns")
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, wrapError(err, "dbassert: cannot read row")
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if raw, ok := vals[i].([]byte); ok {
				row[c] = string(raw)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrapError(err, "dbassert: row iteration failed")
	}
	return out, cols, nil
}

func (b *sqlBackend) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapError(err, "dbassert: exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (b *sqlBackend) Dialect() Dialect { return b.dialect }

func (b *sqlBackend) Close() error { return b.db.Close() }
