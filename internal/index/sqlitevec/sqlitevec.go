// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlitevec implements an index backend on an in-memory SQLite
// database with the sqlite-vec vec0 virtual table.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/recall/internal/index"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// maxK is the largest k the vec0 KNN query accepts.
const maxK = 4096

func init() {
	sqlite_vec.Auto()
	index.RegisterBackend("sqlitevec", func(cfg index.Config) (index.Index, error) {
		if cfg.Accelerate {
			slog.Debug("sqlitevec index has no accelerated path, ignoring hint")
		}
		return New(cfg.Dimension)
	})
}

// Compile-time interface check.
var _ index.Index = (*Index)(nil)

// Index stores vectors in a vec0 table keyed by rowid = position + 1.
type Index struct {
	db    *sql.DB
	dim   int
	count int
}

// New opens a private in-memory database and creates the vectors table.
func New(dim int) (*Index, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "opening sqlite db")
	}
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "pinging sqlite db")
	}

	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE vectors USING vec0(embedding float[%d])`, dim)
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "creating vectors virtual table")
	}

	return &Index{db: db, dim: dim}, nil
}

func (x *Index) Insert(ctx context.Context, vector []float32) error {
	if err := index.CheckVector(vector, x.dim); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "serializing vector")
	}

	rowid := x.count + 1
	if _, err := x.db.ExecContext(ctx, `INSERT INTO vectors(rowid, embedding) VALUES (?, ?)`, rowid, blob); err != nil {
		return recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "inserting vector %d", rowid)
	}
	x.count++
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]index.Neighbor, error) {
	if err := index.CheckVector(vector, x.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	if x.count == 0 {
		return index.Pad(nil, k), nil
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "serializing query vector")
	}

	const q = `SELECT rowid, distance
FROM vectors
WHERE embedding MATCH ? AND k = ?
ORDER BY distance`

	rows, err := x.db.QueryContext(ctx, q, blob, min(k, maxK))
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	out := make([]index.Neighbor, 0, k)
	for rows.Next() {
		var rowid int64
		var dist float64
		if err := rows.Scan(&rowid, &dist); err != nil {
			return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "scanning vector result")
		}
		out = append(out, index.Neighbor{Distance: dist, Position: int(rowid) - 1})
	}
	if err := rows.Err(); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "iterating vector results")
	}

	return index.Pad(out, k), nil
}

func (x *Index) Reset(ctx context.Context) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM vectors`); err != nil {
		return recallerr.Wrapf(err, recallerr.CodeIndexBackendFailure, "deleting vectors")
	}
	x.count = 0
	return nil
}

func (x *Index) Len() int { return x.count }

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}
