package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/sqlite-vec/vector"
	_ "modernc.org/sqlite"

	"helpdesk/internal/domain"
)

const (
	sqliteFile      = "index.sqlite"
	sqliteMetaTable = "store_meta"
)

// sqliteBackend stores the collection as a table with the embedding as a
// little-endian float32 BLOB and metadata as JSON text.
type sqliteBackend struct {
	db *sql.DB
}

func openSQLite(path string) (*sqliteBackend, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) name() string { return "sqlite" }

func (s *sqliteBackend) write(table string, records []*record, info domain.StoreInfo) error {
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + sqliteMetaTable + ` (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`DROP TABLE IF EXISTS ` + table,
		`CREATE TABLE ` + table + ` (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			document TEXT NOT NULL,
			metadata TEXT NOT NULL,
			embedding BLOB
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (seq, id, document, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	for _, r := range records {
		md, err := json.Marshal(r.Document.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", r.ID, err)
		}
		blob, err := vector.EncodeEmbedding(r.Vector)
		if err != nil {
			return err
		}
		if _, err := insert.ExecContext(ctx, int64(r.Seq), r.ID, r.Document.Content, string(md), blob); err != nil {
			return err
		}
	}

	data, err := encodeInfo(info)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO `+sqliteMetaTable+` (key, value) VALUES (?, ?)`, string(keyStoreInfo), string(data)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// hasTable looks the table up in sqlite_master of its schema (main unless
// qualified).
func (s *sqliteBackend) hasTable(ctx context.Context, table string) (bool, error) {
	schema, name := "main", table
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+schema+`.sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, name).Scan(&n)
	return n > 0, err
}

func (s *sqliteBackend) readInfo() (domain.StoreInfo, error) {
	ctx := context.Background()
	ok, err := s.hasTable(ctx, sqliteMetaTable)
	if err != nil {
		return domain.StoreInfo{}, err
	}
	if !ok {
		return domain.StoreInfo{}, fmt.Errorf("%w: no schema info", domain.ErrStoreNotFound)
	}

	var value string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM `+sqliteMetaTable+` WHERE key = ?`, string(keyStoreInfo)).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoreInfo{}, fmt.Errorf("%w: no schema info", domain.ErrStoreNotFound)
		}
		return domain.StoreInfo{}, err
	}
	return decodeInfo([]byte(value))
}

func (s *sqliteBackend) records(table string) ([]*record, error) {
	ctx := context.Background()
	ok, err := s.hasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoTable, table)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, document, metadata, embedding FROM `+table+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*record
	for rows.Next() {
		var (
			seq  int64
			r    record
			md   string
			blob []byte
		)
		if err := rows.Scan(&seq, &r.ID, &r.Document.Content, &md, &blob); err != nil {
			return nil, err
		}
		r.Seq = uint64(seq)
		if r.Document.Metadata, err = decodeMetadata(md); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
		if r.Vector, err = vector.DecodeEmbedding(blob); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// decodeMetadata reads the JSON column back into normalized values, so
// integers come back as int64 as they do from bolt.
func decodeMetadata(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var md map[string]any
	if err := dec.Decode(&md); err != nil {
		return nil, err
	}
	return domain.NormalizeMetadata(md)
}

func (s *sqliteBackend) rowCount(table string) (int64, error) {
	ctx := context.Background()
	ok, err := s.hasTable(ctx, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", errNoTable, table)
	}
	return CountRows(ctx, s.db, table)
}

func (s *sqliteBackend) close() error {
	return s.db.Close()
}
