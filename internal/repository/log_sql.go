package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/pkg/clock"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver - no CGO required
)

// Dialect selects the SQL flavour of a SQLLogRepository.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// SQLLogRepository implements LogRepository on a relational table. Payload
// columns hold the same JSON text the file store writes, so both backends
// reconstruct entries identically.
type SQLLogRepository struct {
	db      *sql.DB
	dialect Dialect
	clock   *clock.Monotonic
	mu      sync.Mutex
}

// NewSQLLogRepository opens the database, creates the table if needed and
// returns a ready repository. For sqlite dsn is a file path.
func NewSQLLogRepository(dialect Dialect, dsn string) (*SQLLogRepository, error) {
	return newSQLLogRepository(dialect, dsn, clock.RealClock{})
}

func newSQLLogRepository(dialect Dialect, dsn string, c clock.Clock) (*SQLLogRepository, error) {
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
	case DialectMySQL:
		driver = "mysql"
	case DialectPostgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported log store dialect: %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1) // SQLite only supports 1 writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	for _, stmt := range schema(dialect) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	log.Printf("[SQLLogRepository] Initialized with %s backend", dialect)
	return &SQLLogRepository{db: db, dialect: dialect, clock: clock.NewMonotonic(c)}, nil
}

func schema(dialect Dialect) []string {
	switch dialect {
	case DialectMySQL:
		return []string{`
		CREATE TABLE IF NOT EXISTS log_entries (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			ts VARCHAR(40) NOT NULL,
			level VARCHAR(16) NOT NULL,
			message TEXT NOT NULL,
			details LONGTEXT NULL,
			data LONGTEXT NULL,
			request LONGTEXT NULL,
			response LONGTEXT NULL
		)`}
	case DialectPostgres:
		return []string{`
		CREATE TABLE IF NOT EXISTS log_entries (
			id BIGSERIAL PRIMARY KEY,
			ts TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			details TEXT,
			data TEXT,
			request TEXT,
			response TEXT
		)`}
	default:
		return []string{`
		CREATE TABLE IF NOT EXISTS log_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			details TEXT,
			data TEXT,
			request TEXT,
			response TEXT
		)`}
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *SQLLogRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func payloadColumn(p model.Payload) sql.NullString {
	if p.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: encodePayload(p), Valid: true}
}

func columnPayload(s sql.NullString) model.Payload {
	if !s.Valid {
		return model.NoPayload()
	}
	return decodePayload(s.String)
}

// Write inserts one entry. The insert and the timestamp assignment happen
// under one lock so ids and timestamps agree on order.
func (r *SQLLogRepository) Write(ctx context.Context, entry model.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.Timestamp = r.clock.Now().Truncate(time.Millisecond)

	query := r.rebind(`
		INSERT INTO log_entries (ts, level, message, details, data, request, response)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		entry.Timestamp.Format(timestampLayout),
		string(entry.Level),
		entry.Message,
		payloadColumn(entry.Details),
		payloadColumn(entry.Data),
		payloadColumn(entry.Request),
		payloadColumn(entry.Response),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// Read returns the newest entries first.
func (r *SQLLogRepository) Read(ctx context.Context, limit int) ([]model.LogEntry, error) {
	query := r.rebind(`
		SELECT ts, level, message, details, data, request, response
		FROM log_entries
		ORDER BY id DESC
		LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	entries := []model.LogEntry{}
	for rows.Next() {
		var (
			ts, level, message                string
			details, data, request, response sql.NullString
		)
		if err := rows.Scan(&ts, &level, &message, &details, &data, &request, &response); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			log.Printf("[SQLLogRepository] Unreadable timestamp %q: %v", ts, err)
		}
		entries = append(entries, model.LogEntry{
			Timestamp: parsed.UTC(),
			Level:     model.Level(level),
			Message:   message,
			Details:   columnPayload(details),
			Data:      columnPayload(data),
			Request:   columnPayload(request),
			Response:  columnPayload(response),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ping checks the database connection.
func (r *SQLLogRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLLogRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLLogRepository implements LogRepository
var _ LogRepository = (*SQLLogRepository)(nil)
