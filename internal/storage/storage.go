// Package storage persists submitted value bags in a SQL database. One row
// holds the bag of a single definition for a single object (an options page,
// a post, a term or a product variation).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-customfields/pkg/values"
)

// ErrNotFound is returned by Load when no bag was stored for the key.
var ErrNotFound = errors.New("storage: values not found")

// ErrUnknownEngine is returned for engines without a driver.
var ErrUnknownEngine = errors.New("storage: unknown engine")

// Engine names accepted by Open.
const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineMariaDB  = "mariadb"
	EngineSQLite3  = "sqlite3"
	EngineSQLite   = "sqlite"
)

// Table is the name of the values table.
const Table = "customfield_values"

// Config selects the engine and its connection settings. DSN wins over the
// individual fields when set.
type Config struct {
	Engine   string
	DSN      string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Path     string
}

// Record is one stored bag.
type Record struct {
	DefinitionID string
	ObjectID     string
	Values       values.Bag
	Modified     time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store reads and writes value bags.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Open connects to the configured engine, applies the pool settings and
// creates the values table when missing.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	d, ok := dialectFor(cfg.Engine)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
	db, err := sql.Open(d.driver, dsn(d, cfg))
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", d.name, err)
	}
	if d.singleWriter {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", d.name, err)
	}

	store := New(db, cfg.Engine, opts...)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	store.logger.Info("storage: connected", "engine", d.name)
	return store, nil
}

// New wraps an existing connection. Unknown engines fall back to the SQLite
// dialect.
func New(db *sql.DB, engine string, opts ...Option) *Store {
	d, ok := dialectFor(engine)
	if !ok {
		d = dialects[EngineSQLite]
	}
	s := &Store{db: db, dialect: d, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the connection.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the values table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("storage: create table: %w", err)
	}
	return nil
}

// Load returns the bag stored for definitionID and objectID.
func (s *Store) Load(ctx context.Context, definitionID, objectID string) (values.Bag, error) {
	query := s.rebind(`SELECT data FROM ` + Table + ` WHERE definition_id = ? AND object_id = ?`)
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, definitionID, objectID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load %s/%s: %w", definitionID, objectID, err)
	}
	return decodeBag(raw)
}

// LoadOrEmpty is Load with a missing row reported as an empty bag.
func (s *Store) LoadOrEmpty(ctx context.Context, definitionID, objectID string) (values.Bag, error) {
	bag, err := s.Load(ctx, definitionID, objectID)
	if errors.Is(err, ErrNotFound) {
		return values.Bag{}, nil
	}
	return bag, err
}

// Save inserts or replaces the bag stored for definitionID and objectID.
func (s *Store) Save(ctx context.Context, definitionID, objectID string, bag values.Bag) error {
	if definitionID == "" {
		return errors.New("storage: definition id is required")
	}
	if bag == nil {
		bag = values.Bag{}
	}
	data, err := bag.JSON()
	if err != nil {
		return fmt.Errorf("storage: encode %s/%s: %w", definitionID, objectID, err)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(s.dialect.upsert), definitionID, objectID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("storage: save %s/%s: %w", definitionID, objectID, err)
	}
	s.logger.Debug("storage: values saved", "definition", definitionID, "object", objectID, "bytes", len(data))
	return nil
}

// Delete removes a stored bag. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, definitionID, objectID string) error {
	query := s.rebind(`DELETE FROM ` + Table + ` WHERE definition_id = ? AND object_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, definitionID, objectID); err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", definitionID, objectID, err)
	}
	return nil
}

// List returns every bag stored for definitionID, ordered by object id.
func (s *Store) List(ctx context.Context, definitionID string) ([]Record, error) {
	query := s.rebind(`SELECT object_id, data, modified FROM ` + Table + ` WHERE definition_id = ? ORDER BY object_id`)
	rows, err := s.db.QueryContext(ctx, query, definitionID)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", definitionID, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			objectID string
			raw      []byte
			modified any
		)
		if err := rows.Scan(&objectID, &raw, &modified); err != nil {
			return nil, fmt.Errorf("storage: scan %s: %w", definitionID, err)
		}
		bag, err := decodeBag(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{
			DefinitionID: definitionID,
			ObjectID:     objectID,
			Values:       bag,
			Modified:     scanTime(modified),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", definitionID, err)
	}
	return records, nil
}

// rebind rewrites "?" placeholders to the dialect's style.
func (s *Store) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeBag(raw []byte) (values.Bag, error) {
	bag := values.Bag{}
	if len(raw) == 0 {
		return bag, nil
	}
	if err := json.Unmarshal(raw, &bag); err != nil {
		return nil, fmt.Errorf("storage: decode values: %w", err)
	}
	return bag, nil
}

// scanTime accepts the time representations the drivers return for the
// modified column.
func scanTime(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	default:
		return time.Time{}
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, " m="); idx > 0 {
		raw = raw[:idx]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
