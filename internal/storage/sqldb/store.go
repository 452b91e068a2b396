// Package sqldb stores recorded exchanges in a SQL database through sqlx.
// SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq) are supported.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-event-gateway/internal/storage/dialect"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is a SQL implementation of ports.ExchangeStore.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var (
	_ ports.StorageProvider = (*Store)(nil)
	_ ports.Pinger          = (*Store)(nil)
)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite or postgres
	DSN    string // Data source name / connection string
}

// New opens the database and creates the schema if needed.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite opens a SQLite store at path, which may be a file: URI.
func NewSQLite(path string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: path})
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS exchanges (
id TEXT PRIMARY KEY,
request_id TEXT NOT NULL DEFAULT '',
scope_type TEXT NOT NULL,
method TEXT NOT NULL,
path TEXT NOT NULL,
query TEXT NOT NULL DEFAULT '',
route TEXT NOT NULL DEFAULT '',
status INTEGER NOT NULL,
request_body TEXT NOT NULL DEFAULT '',
response_body TEXT NOT NULL DEFAULT '',
error_message TEXT NOT NULL DEFAULT '',
duration_ns %s NOT NULL DEFAULT 0,
created_at %s NOT NULL
)`, s.dialect.BigIntType(), s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_path ON exchanges(path)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_status ON exchanges(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

type exchangeRow struct {
	ID           string    `db:"id"`
	RequestID    string    `db:"request_id"`
	ScopeType    string    `db:"scope_type"`
	Method       string    `db:"method"`
	Path         string    `db:"path"`
	Query        string    `db:"query"`
	Route        string    `db:"route"`
	Status       int       `db:"status"`
	RequestBody  string    `db:"request_body"`
	ResponseBody string    `db:"response_body"`
	Error        string    `db:"error_message"`
	DurationNS   int64     `db:"duration_ns"`
	CreatedAt    time.Time `db:"created_at"`
}

const exchangeColumns = `id, request_id, scope_type, method, path, query, route, status,
request_body, response_body, error_message, duration_ns, created_at`

func toRow(ex *domain.Exchange) exchangeRow {
	return exchangeRow{
		ID:           ex.ID,
		RequestID:    ex.RequestID,
		ScopeType:    string(ex.ScopeType),
		Method:       ex.Method,
		Path:         ex.Path,
		Query:        ex.Query,
		Route:        ex.Route,
		Status:       ex.Status,
		RequestBody:  ex.RequestBody,
		ResponseBody: ex.ResponseBody,
		Error:        ex.Error,
		DurationNS:   int64(ex.Duration),
		CreatedAt:    ex.CreatedAt.UTC(),
	}
}

func (r exchangeRow) toDomain() *domain.Exchange {
	return &domain.Exchange{
		ID:           r.ID,
		RequestID:    r.RequestID,
		ScopeType:    domain.ScopeType(r.ScopeType),
		Method:       r.Method,
		Path:         r.Path,
		Query:        r.Query,
		Route:        r.Route,
		Status:       r.Status,
		RequestBody:  r.RequestBody,
		ResponseBody: r.ResponseBody,
		Error:        r.Error,
		Duration:     time.Duration(r.DurationNS),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (s *Store) SaveExchange(ctx context.Context, ex *domain.Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	query := `INSERT INTO exchanges (` + exchangeColumns + `)
VALUES (:id, :request_id, :scope_type, :method, :path, :query, :route, :status,
:request_body, :response_body, :error_message, :duration_ns, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, toRow(ex)); err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

func (s *Store) GetExchange(ctx context.Context, id string) (*domain.Exchange, error) {
	query := s.dialect.Rebind(`SELECT ` + exchangeColumns + ` FROM exchanges WHERE id = ?`)

	var row exchangeRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("exchange %s: %w", id, domain.ErrExchangeNotFound)
		}
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListExchanges(ctx context.Context, opts ports.ExchangeListOptions) ([]*domain.Exchange, error) {
	var (
		where []string
		args  []any
	)
	if opts.Path != "" {
		where = append(where, "path = ?")
		args = append(args, opts.Path)
	}
	if opts.Status != 0 {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = ports.DefaultExchangeListLimit
	}
	offset := max(opts.Offset, 0)

	var b strings.Builder
	b.WriteString(`SELECT ` + exchangeColumns + ` FROM exchanges`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	var rows []exchangeRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(b.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}

	out := make([]*domain.Exchange, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
