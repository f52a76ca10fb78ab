package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver - no CGO required

	"bling-mirror/internal/logging"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// SQLStore keeps documents as JSON rows in SQLite, PostgreSQL or MySQL.
// Each collection is a table of (seq, doc); seq preserves insertion order.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	log    zerolog.Logger
}

// NewSQLStore opens a SQL document store. kind is sqlite, postgres or mysql.
func NewSQLStore(ctx context.Context, kind, dsn string) (*SQLStore, error) {
	driver, err := driverName(kind)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite only supports 1 writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	log := logging.Component("SQLStore")
	log.Info().Str("driver", driver).Msg("connected")

	return &SQLStore{db: db, driver: driver, log: log}, nil
}

func driverName(kind string) (string, error) {
	switch strings.ToLower(kind) {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported SQL store %q", kind)
	}
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Kind returns the SQL driver name.
func (s *SQLStore) Kind() string { return s.driver }

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *SQLStore) createTable(ctx context.Context, table string) error {
	var ddl string
	switch s.driver {
	case "postgres":
		ddl = `CREATE TABLE IF NOT EXISTS ` + table + ` (seq BIGSERIAL PRIMARY KEY, doc TEXT NOT NULL)`
	case "mysql":
		ddl = `CREATE TABLE IF NOT EXISTS ` + table + ` (seq BIGINT AUTO_INCREMENT PRIMARY KEY, doc LONGTEXT NOT NULL)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS ` + table + ` (seq INTEGER PRIMARY KEY AUTOINCREMENT, doc TEXT NOT NULL)`
	}
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// SQLCollection implements Collection over one table of JSON documents.
// Date filters are evaluated after decoding, against RFC 3339 values.
type SQLCollection[T any] struct {
	store *SQLStore
	table string
}

// NewSQLCollection creates the backing table if needed.
func NewSQLCollection[T any](ctx context.Context, s *SQLStore, name string) (*SQLCollection[T], error) {
	if !tableNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	if err := s.createTable(ctx, name); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	return &SQLCollection[T]{store: s, table: name}, nil
}

// Find returns matching documents.
func (c *SQLCollection[T]) Find(ctx context.Context, f Filter) ([]T, error) {
	order := "ASC"
	if f.Newest {
		order = "DESC"
	}

	var docs []string
	query := `SELECT doc FROM ` + c.table + ` ORDER BY seq ` + order
	if err := c.store.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("find %s: %w", c.table, err)
	}

	out := make([]T, 0, len(docs))
	for _, raw := range docs {
		if f.Field != "" {
			ok, err := matchSince(raw, f.Field, f.Since)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", c.table, err)
			}
			if !ok {
				continue
			}
		}

		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.table, err)
		}
		out = append(out, doc)

		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func matchSince(raw, field string, since time.Time) (bool, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return false, err
	}
	s, ok := m[field].(string)
	if !ok {
		return false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return false, nil
	}
	return !t.Before(since), nil
}

// Count returns the number of rows.
func (c *SQLCollection[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.store.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+c.table); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.table, err)
	}
	return n, nil
}

// DeleteMany removes every row.
func (c *SQLCollection[T]) DeleteMany(ctx context.Context) (int64, error) {
	res, err := c.store.db.ExecContext(ctx, `DELETE FROM `+c.table)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.table, err)
	}
	return n, nil
}

// InsertMany inserts docs in one transaction.
func (c *SQLCollection[T]) InsertMany(ctx context.Context, docs []T) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := c.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO `+c.table+` (doc) VALUES (?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range docs {
		raw, err := json.Marshal(docs[i])
		if err != nil {
			return fmt.Errorf("encode %s[%d]: %w", c.table, i, err)
		}
		if _, err := stmt.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("insert %s[%d]: %w", c.table, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
