package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"    // MySQL
	_ "github.com/jackc/pgx/v5/stdlib"    // PostgreSQL pgx/v5 driver
	_ "github.com/lib/pq"                 // PostgreSQL legacy (keep for compatibility)
	_ "github.com/mattn/go-sqlite3"       // SQLite
)

// ErrSourceUnavailable is returned when a data source cannot be opened or read
var ErrSourceUnavailable = errors.New("data source unavailable")

// ConnectionConfig represents a data source connection configuration
type ConnectionConfig struct {
	SourceType SourceType

	// File-based sources
	FilePath string

	// Server-based sources
	ConnectionString string

	// Connect timeout, defaults to 30s
	TimeoutMs int
}

// Source represents a read-only handle to a data source. The handle is
// opened in explicit read-only mode, independent of query validation.
type Source struct {
	db     *sql.DB
	config ConnectionConfig
}

// Open opens a read-only connection to the configured data source.
// Fails with a wrapped ErrSourceUnavailable if the source cannot be
// reached.
func Open(config ConnectionConfig) (*Source, error) {
	dsn, driverName, err := readOnlyDSN(config)
	if err != nil {
		return nil, err
	}

	handle, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	timeout := config.TimeoutMs
	if timeout == 0 {
		timeout = 30000
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Millisecond)
	defer cancel()

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	// Conversation throughput is human-paced, a handful of connections
	// is plenty
	handle.SetMaxOpenConns(4)
	handle.SetMaxIdleConns(2)
	handle.SetConnMaxLifetime(5 * time.Minute)

	return &Source{db: handle, config: config}, nil
}

// readOnlyDSN builds a driver name and DSN that open the source in
// read-only mode as a second line of defense independent of the validator.
func readOnlyDSN(config ConnectionConfig) (dsn, driverName string, err error) {
	switch config.SourceType {
	case SourceTypeSQLite:
		if config.FilePath == "" {
			return "", "", fmt.Errorf("%w: sqlite source requires a file path", ErrSourceUnavailable)
		}
		dsn = fmt.Sprintf("file:%s?mode=ro&_query_only=1", config.FilePath)
		driverName = "sqlite3"
	case SourceTypePostgreSQL:
		if config.ConnectionString == "" {
			return "", "", fmt.Errorf("%w: postgresql source requires a connection string", ErrSourceUnavailable)
		}
		dsn = appendDSNOption(config.ConnectionString, "default_transaction_read_only=on")
		driverName = "pgx"
	case SourceTypeMySQL:
		if config.ConnectionString == "" {
			return "", "", fmt.Errorf("%w: mysql source requires a connection string", ErrSourceUnavailable)
		}
		// unknown DSN params are applied as session system variables
		dsn = appendMySQLParam(config.ConnectionString, "transaction_read_only=1&parseTime=true")
		driverName = "mysql"
	default:
		return "", "", fmt.Errorf("%w: unsupported source type %q", ErrSourceUnavailable, config.SourceType)
	}
	return dsn, driverName, nil
}

func appendDSNOption(connStr, option string) string {
	if strings.Contains(connStr, "://") {
		// URL form: postgres://user@host/db?sslmode=disable
		sep := "?"
		if strings.Contains(connStr, "?") {
			sep = "&"
		}
		return connStr + sep + "options=-c%20" + strings.ReplaceAll(option, "=", "%3D")
	}
	// key=value form
	return connStr + " options='-c " + option + "'"
}

func appendMySQLParam(connStr, params string) string {
	sep := "?"
	if strings.Contains(connStr, "?") {
		sep = "&"
	}
	return connStr + sep + params
}

// Type returns the source type
func (s *Source) Type() SourceType {
	return s.config.SourceType
}

// Config returns the connection configuration
func (s *Source) Config() ConnectionConfig {
	return s.config
}

// Close closes the source handle
func (s *Source) Close() error {
	return s.db.Close()
}
