// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// It is the transactional alternative to the flat-file store: SQLite
// keeps everything in a single file, serializes writers itself, and
// looks records up through a B-tree index instead of a scan.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aanand-mishra/students-registry/internal/storage"
	"github.com/aanand-mishra/students-registry/internal/types"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at path, creates the students table if
// it does not already exist, and returns a ready-to-use *SQLite.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// "database is locked" errors under concurrent saves.
	db.SetMaxOpenConns(1)

	// seq preserves insertion order. id is NOT unique: duplicates are
	// accepted and the earliest row (lowest seq) is the one returned.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         INTEGER NOT NULL,
			name       TEXT    NOT NULL,
			last_name  TEXT    NOT NULL,
			born_place TEXT    NOT NULL,
			degree     TEXT    NOT NULL,
			campus     TEXT    NOT NULL,
			score      INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS students_id ON students (id, seq);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Save inserts a new row. Validation runs first so an invalid record
// never reaches the database.
func (s *SQLite) Save(ctx context.Context, st types.Student) (types.Student, error) {
	if err := ctx.Err(); err != nil {
		return st, err
	}
	if err := types.Validate(st); err != nil {
		return st, fmt.Errorf("sqlite.Save: %w", err)
	}

	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO students (id, name, last_name, born_place, degree, campus, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.LastName, st.BornPlace, st.Degree, st.Campus.String(), st.ScoreAdmision,
	)
	if err != nil {
		return st, storage.Fault("sqlite.Save", err)
	}
	return st, nil
}

// FindByID fetches the earliest row with the given id.
func (s *SQLite) FindByID(ctx context.Context, id int64) (types.Student, error) {
	if err := ctx.Err(); err != nil {
		return types.Student{}, err
	}

	row := s.Db.QueryRowContext(ctx,
		`SELECT id, name, last_name, born_place, degree, campus, score
		 FROM students WHERE id = ? ORDER BY seq LIMIT 1`, id)

	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return types.Student{}, fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}
	if err != nil {
		return types.Student{}, storage.Fault("sqlite.FindByID", err)
	}
	return st, nil
}

// Delete removes every row with the given id.
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := s.Db.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return storage.Fault("sqlite.Delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return storage.Fault("sqlite.Delete", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}
	return nil
}

// List returns the earliest row for every id, in insertion order.
func (s *SQLite) List(ctx context.Context) ([]types.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.Db.QueryContext(ctx,
		`SELECT id, name, last_name, born_place, degree, campus, score
		 FROM students
		 WHERE seq IN (SELECT MIN(seq) FROM students GROUP BY id)
		 ORDER BY seq`)
	if err != nil {
		return nil, storage.Fault("sqlite.List", err)
	}
	defer rows.Close()

	// Pre-allocate an empty (non-nil) slice so JSON encodes [] not null.
	students := make([]types.Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, storage.Fault("sqlite.List", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Fault("sqlite.List", err)
	}
	return students, nil
}

func (s *SQLite) Close() error {
	return s.Db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (types.Student, error) {
	var (
		st     types.Student
		campus string
	)
	err := row.Scan(
		&st.ID,
		&st.Name,
		&st.LastName,
		&st.BornPlace,
		&st.Degree,
		&campus,
		&st.ScoreAdmision,
	)
	if err != nil {
		return types.Student{}, err
	}
	if st.Campus, err = types.ParseCampus(campus); err != nil {
		return types.Student{}, err
	}
	return st, nil
}

var _ storage.Storage = (*SQLite)(nil)
