// Package pg implements an h5.Store as a table of extents in a Postgresql database.
package pg

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// Store is a Postgresql-based h5.Store.
// Appends lock the extents table,
// so concurrent writers sharing a database see a single growing sequence of bytes.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `extents` table if it does not exist.
// (If it does exist, it must have the columns and constraints described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS extents (
  pos BIGINT PRIMARY KEY NOT NULL,
  data BYTEA NOT NULL
);
`

// New produces a new Store using `db` for storage.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, errors.Wrap(err, "creating schema")
}

type querier interface {
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func size(ctx context.Context, db querier) (uint64, error) {
	const q = `SELECT pos + octet_length(data) FROM extents ORDER BY pos DESC LIMIT 1`

	var end int64
	err := db.QueryRowContext(ctx, q).Scan(&end)
	if stderrs.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return uint64(end), errors.Wrap(err, "querying store size")
}

// Size implements h5.Reader.
func (s *Store) Size(ctx context.Context) (uint64, error) {
	return size(ctx, s.db)
}

// ReadAt implements h5.Reader.
func (s *Store) ReadAt(ctx context.Context, off uint64, n int) ([]byte, error) {
	sz, err := s.Size(ctx)
	if err != nil {
		return nil, err
	}
	end := off + uint64(n)
	if end > sz {
		return nil, h5.ErrShortRead
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	const q = `SELECT pos, data FROM extents WHERE pos < $1 AND pos + octet_length(data) > $2 ORDER BY pos`
	err = sqlutil.ForQueryRows(ctx, s.db, q, int64(end), int64(off), func(pos int64, data []byte) {
		store.Overlay(buf, off, data, uint64(pos))
	})
	return buf, errors.Wrapf(err, "reading %d bytes at offset %d", n, off)
}

func (s *Store) withTx(ctx context.Context, f func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Append implements h5.Store.
func (s *Store) Append(ctx context.Context, b []byte) (off, n uint64, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE extents IN EXCLUSIVE MODE`); err != nil {
			return errors.Wrap(err, "locking extents")
		}
		off, err = size(ctx, tx)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return nil
		}
		const q = `INSERT INTO extents (pos, data) VALUES ($1, $2)`
		_, err = tx.ExecContext(ctx, q, int64(off), b)
		return errors.Wrapf(err, "inserting extent at %d", off)
	})
	return off, uint64(len(b)), err
}

// WriteAt implements h5.Store.
func (s *Store) WriteAt(ctx context.Context, off uint64, b []byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		sz, err := size(ctx, tx)
		if err != nil {
			return err
		}
		end := off + uint64(len(b))
		if end > sz {
			return errors.Wrapf(h5.ErrShortRead, "writing %d bytes at offset %d of %d", len(b), off, sz)
		}

		var (
			positions []int64
			datas     [][]byte
		)
		const q = `SELECT pos, data FROM extents WHERE pos < $1 AND pos + octet_length(data) > $2 ORDER BY pos FOR UPDATE`
		err = sqlutil.ForQueryRows(ctx, tx, q, int64(end), int64(off), func(pos int64, data []byte) {
			positions = append(positions, pos)
			datas = append(datas, data)
		})
		if err != nil {
			return errors.Wrap(err, "querying extents")
		}

		for i, pos := range positions {
			store.Overlay(datas[i], uint64(pos), b, off)
			const q = `UPDATE extents SET data = $1 WHERE pos = $2`
			if _, err := tx.ExecContext(ctx, q, datas[i], pos); err != nil {
				return errors.Wrapf(err, "updating extent at %d", pos)
			}
		}
		return nil
	})
}

func init() {
	store.Register("pg", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		conn, err := store.String(conf, "conn")
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
