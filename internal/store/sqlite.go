package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"roost/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; agents must then recreate the coordination database.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SQLiteStore is the durable Store implementation backed by a shared SQLite
// database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the coordination database.
func Open(cfg *config.Config) (*SQLiteStore, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath connects to the coordination database at an explicit location.
func OpenPath(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version sql.NullInt64
	row := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read schema version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	} else if version.Int64 != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate)",
			ErrSchemaMismatch, version.Int64, schemaVersion, s.path)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) HSet(ctx context.Context, ns, field, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO hash_entries (ns, field, value, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (ns, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		ns, field, value, now(),
	)
	if err != nil {
		return fmt.Errorf("hset %s/%s: %w", ns, field, err)
	}
	return nil
}

func (s *SQLiteStore) HGet(ctx context.Context, ns, field string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM hash_entries WHERE ns = ? AND field = ?`, ns, field)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("hget %s/%s: %w", ns, field, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) HDel(ctx context.Context, ns, field string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hash_entries WHERE ns = ? AND field = ?`, ns, field)
	if err != nil {
		return false, fmt.Errorf("hdel %s/%s: %w", ns, field, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) HGetAll(ctx context.Context, ns string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM hash_entries WHERE ns = ?`, ns)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", ns, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		out[field] = value
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rpush tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, value := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO list_entries (list_key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("rpush %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rpush: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := s.listValues(ctx, key)
	if err != nil {
		return nil, err
	}
	lo, hi, ok := normalizeRange(start, stop, int64(len(values)))
	if !ok {
		return nil, nil
	}
	return values[lo:hi], nil
}

func (s *SQLiteStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM list_entries WHERE list_key = ? ORDER BY id`, key)
	if err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	lo, hi, ok := normalizeRange(start, stop, int64(len(ids)))
	if !ok {
		_, err := s.db.ExecContext(ctx, `DELETE FROM list_entries WHERE list_key = ?`, key)
		if err != nil {
			return fmt.Errorf("ltrim clear %s: %w", key, err)
		}
		return nil
	}

	keepLow, keepHigh := ids[lo], ids[hi-1]
	_, err = s.db.ExecContext(
		ctx,
		`DELETE FROM list_entries WHERE list_key = ? AND (id < ? OR id > ?)`,
		key, keepLow, keepHigh,
	)
	if err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// CheckHealth pings the database and reports basic diagnostics.
func (s *SQLiteStore) CheckHealth(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("coordination database connection unavailable")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping coordination database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listValues(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM list_entries WHERE list_key = ? ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
