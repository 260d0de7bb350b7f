// SPDX-License-Identifier: EPL-2.0

// Package postgres keeps conversion records in PostgreSQL through the pgx
// database/sql driver. The table is created on Open when missing.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ik5/audconv/spectrum"
	"github.com/ik5/audconv/storage"
)

const DefaultTable = "conversions"

var tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

type Option func(*Store)

// WithTable overrides the table name. Names that are not plain lower case
// identifiers are ignored.
func WithTable(name string) Option {
	return func(s *Store) {
		if tablePattern.MatchString(name) {
			s.table = name
		}
	}
}

// Store is a storage.MetadataStore backed by one table.
type Store struct {
	db    *sql.DB
	table string
}

// Open connects to dsn, verifies the connection and creates the table.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}

	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle. The caller owns db; Migrate is not run.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying handle.
func (s *Store) DB() (*sql.DB, error) {
	if s.db == nil {
		return nil, errors.New("postgres: store has no database handle")
	}
	return s.db, nil
}

// Table returns the table records are kept in.
func (s *Store) Table() string { return s.table }

// Migrate creates the table and its index when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	createTable := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        id UUID PRIMARY KEY,
        original_filename TEXT NOT NULL,
        object_key TEXT NOT NULL,
        url TEXT NOT NULL,
        mimetype TEXT NOT NULL,
        sample_rate INTEGER NOT NULL,
        bit_depth TEXT NOT NULL,
        original_spectrum JSONB NOT NULL,
        processed_spectrum JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`, s.table)

	createIndex := fmt.Sprintf(`
    CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s (created_at DESC);`, s.table)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating %s table: %w", s.table, err)
	}
	if _, err := s.db.ExecContext(ctx, createIndex); err != nil {
		return fmt.Errorf("creating %s index: %w", s.table, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, r storage.Record) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	} else if _, err := uuid.Parse(r.ID); err != nil {
		return "", fmt.Errorf("record id %q: %w", r.ID, err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	orig, err := json.Marshal(r.OriginalSpectrum)
	if err != nil {
		return "", fmt.Errorf("encoding original spectrum: %w", err)
	}
	proc, err := json.Marshal(r.ProcessedSpectrum)
	if err != nil {
		return "", fmt.Errorf("encoding processed spectrum: %w", err)
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (id, original_filename, object_key, url, mimetype,
            sample_rate, bit_depth, original_spectrum, processed_spectrum, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.OriginalFilename, r.ObjectKey, r.URL, r.MimeType,
		r.SampleRate, r.BitDepth, string(orig), string(proc), r.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("inserting record: %w", err)
	}

	return r.ID, nil
}

const columns = `id::text, original_filename, object_key, url, mimetype,
    sample_rate, bit_depth, original_spectrum, processed_spectrum, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (storage.Record, error) {
	var (
		r          storage.Record
		orig, proc []byte
	)
	err := row.Scan(&r.ID, &r.OriginalFilename, &r.ObjectKey, &r.URL, &r.MimeType,
		&r.SampleRate, &r.BitDepth, &orig, &proc, &r.CreatedAt)
	if err != nil {
		return r, err
	}

	if r.OriginalSpectrum, err = decodeSpectrum(orig); err != nil {
		return r, fmt.Errorf("decoding original spectrum of %s: %w", r.ID, err)
	}
	if r.ProcessedSpectrum, err = decodeSpectrum(proc); err != nil {
		return r, fmt.Errorf("decoding processed spectrum of %s: %w", r.ID, err)
	}
	return r, nil
}

func decodeSpectrum(b []byte) (spectrum.Summary, error) {
	s := spectrum.Summary{Frequencies: []float64{}, Magnitudes: []float64{}}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, err
	}
	if s.Frequencies == nil {
		s.Frequencies = []float64{}
	}
	if s.Magnitudes == nil {
		s.Magnitudes = []float64{}
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, id string) (*storage.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("record %q: %w", id, storage.ErrNotFound)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, s.table)
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting record %q: %w", id, err)
	}
	return &r, nil
}

func (s *Store) List(ctx context.Context) ([]storage.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id`, columns, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	records := []storage.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("record %q: %w", id, storage.ErrNotFound)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting record %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting record %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("record %q: %w", id, storage.ErrNotFound)
	}
	return nil
}
