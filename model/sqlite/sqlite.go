package sqlite

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY,
	screen_name TEXT NOT NULL,
	created_at TIMESTAMP,
	content_text TEXT NOT NULL DEFAULT '',
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_items_screen_name_deleted
	ON items (screen_name, deleted);`

// Open opens the single-file item cache, creating the schema if it
// does not exist yet. WAL keeps mutations durable without blocking a
// concurrent reader.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

type prepareRunner struct {
	preparer sq.Preparer
}

func (r prepareRunner) Query(query string, args ...interface{}) (*sql.Rows, error) {
	stmt, err := r.preparer.Prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}

	return rows, err
}

func (r prepareRunner) Exec(query string, args ...interface{}) (sql.Result, error) {
	stmt, err := r.preparer.Prepare(query)
	if err != nil {
		return nil, err
	}

	res, err := stmt.Exec(args...)
	if err != nil {
		return nil, err
	}

	return res, err
}

func (r prepareRunner) QueryRow(query string, args ...interface{}) sq.RowScanner {
	stmt, err := r.preparer.Prepare(query)
	if err != nil {
		return &row{err: err}
	}

	return &row{RowScanner: stmt.QueryRow(args...)}
}

type row struct {
	sq.RowScanner
	err error
}

func (r *row) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}

	return r.RowScanner.Scan(dest...)
}
