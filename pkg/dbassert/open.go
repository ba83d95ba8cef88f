package dbassert

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/clients/postgres"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// Config selects the database the assertions read.
type Config struct {
	// Driver is postgres, mysql or sqlite3.
	Driver string `json:"driver" yaml:"driver" env:"DRIVER" envDefault:"postgres"`

	// DSN is the driver-specific data source name. For postgres it
	// overrides Postgres.URI.
	DSN string `json:"-" yaml:"dsn" env:"DSN"`

	// Postgres holds structured settings used when Driver is postgres.
	Postgres postgres.Config `json:"postgres" yaml:"postgres" env:"POSTGRES"`
}

// Enabled reports whether a database is configured at all.
func (c *Config) Enabled() bool {
	return c.DSN != "" || c.Postgres.URI != "" || c.Postgres.Database != ""
}

// Validate checks the driver and, for MySQL, the DSN syntax.
func (c *Config) Validate() error {
	switch c.Driver {
	case "", DriverPostgres:
		c.Driver = DriverPostgres
		pg := c.postgresConfig()
		return pg.Validate()
	case DriverMySQL:
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return fmt.Errorf("dbassert: invalid mysql dsn: %w", err)
		}
	case DriverSQLite:
		if c.DSN == "" {
			return fmt.Errorf("dbassert: sqlite3 requires a dsn")
		}
	default:
		return fmt.Errorf("dbassert: unsupported driver %q (use postgres, mysql or sqlite3)", c.Driver)
	}
	return nil
}

func (c *Config) postgresConfig() postgres.Config {
	pg := c.Postgres
	if c.DSN != "" {
		pg.URI = c.DSN
	}
	return pg
}

// Open connects to the configured database and returns a Helper. The
// caller closes it.
//
// Error codes returned:
//   - [sserr.CodeValidation]: invalid configuration
//   - [sserr.CodeUnavailableDependency]: the database is unreachable
func Open(ctx context.Context, cfg Config) (*Helper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "dbassert: invalid configuration")
	}

	if cfg.Driver == DriverPostgres {
		client, err := postgres.NewClient(ctx, cfg.postgresConfig())
		if err != nil {
			return nil, err
		}
		return New(NewPgxBackend(client, client.Close)), nil
	}

	dsn := cfg.DSN
	dialect := DialectSQLite
	if cfg.Driver == DriverMySQL {
		mc, _ := mysql.ParseDSN(cfg.DSN)
		// Scan DATETIME columns into time.Time.
		mc.ParseTime = true
		dsn = mc.FormatDSN()
		dialect = DialectMySQL
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "dbassert: cannot open database")
	}
	if dialect == DialectSQLite {
		// In-memory databases exist per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "dbassert: database is unreachable")
	}
	return New(NewSQLBackend(db, dialect)), nil
}
