// Package sqlite3 implements an h5.Store as a table of extents in a Sqlite database.
package sqlite3

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = &Store{}

// Store is a Sqlite-based h5.Store.
// Each Append adds one row to the extents table;
// the row's pos is the store offset of its first byte.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `extents` table if it does not exist.
// (If it does exist, it must have the columns and constraints described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS extents (
  pos INTEGER PRIMARY KEY NOT NULL,
  data BLOB NOT NULL
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
	const q = `SELECT pos + length(data) FROM extents ORDER BY pos DESC LIMIT 1`

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

	const q = `SELECT pos, data FROM extents WHERE pos < $1 AND pos + length(data) > $2 ORDER BY pos`
	err = sqlutil.ForQueryRows(ctx, s.db, q, int64(end), int64(off), func(pos int64, data []byte) {
		store.Overlay(buf, off, data, uint64(pos))
	})
	return buf, errors.Wrapf(err, "reading %d bytes at offset %d", n, off)
}

// Append implements h5.Store.
func (s *Store) Append(ctx context.Context, b []byte) (off, n uint64, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
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

type extent struct {
	pos  int64
	data []byte
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

		var extents []extent
		const q = `SELECT pos, data FROM extents WHERE pos < $1 AND pos + length(data) > $2 ORDER BY pos`
		err = sqlutil.ForQueryRows(ctx, tx, q, int64(end), int64(off), func(pos int64, data []byte) {
			extents = append(extents, extent{pos: pos, data: data})
		})
		if err != nil {
			return errors.Wrap(err, "querying extents")
		}

		for _, x := range extents {
			store.Overlay(x.data, uint64(x.pos), b, off)
			const q = `UPDATE extents SET data = $1 WHERE pos = $2`
			if _, err := tx.ExecContext(ctx, q, x.data, x.pos); err != nil {
				return errors.Wrapf(err, "updating extent at %d", x.pos)
			}
		}
		return nil
	})
}

func init() {
	store.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		conn, err := store.String(conf, "conn")
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
