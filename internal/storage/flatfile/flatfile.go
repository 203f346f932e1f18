// Package flatfile provides a storage.Storage backed by a single
// tab-delimited text file, one record per line.
//
// The file is an append-only log. Saves append a record line, deletes
// append a tombstone line ("<id>\t-"), and nothing is ever rewritten in
// place except by Compact. An in-memory index built once at Open maps
// every live id to the byte range of its first record line, so lookups
// cost one positioned read instead of a scan of the whole file.
//
// A Store is safe for concurrent use. Writes (Save, Delete, Compact) are
// serialized by a mutex; lookups share a read lock. Only one process
// should write to a given file.
package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kjk/common/atomicfile"

	"github.com/aanand-mishra/students-registry/internal/storage"
	"github.com/aanand-mishra/students-registry/internal/types"
)

// ErrClosed is returned (wrapped as a storage fault) by calls after Close.
var ErrClosed = errors.New("store is closed")

// location of a record line in the data file, newline excluded
type location struct {
	offset int64
	size   int
}

// Store is the flat-file implementation of storage.Storage.
type Store struct {
	path string
	log  *slog.Logger

	mu     sync.RWMutex
	index  map[int64]location
	size   int64 // current size of the data file
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped lines and write failures.
// Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// Open loads the data file at path (creating its directory if needed) and
// builds the id index. A missing file is an empty store; the file itself
// is created by the first Save.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("flatfile.Open: path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("flatfile.Open: absolute path: %w", err)
	}

	s := &Store{path: abs, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("flatfile.Open: create dir: %w", err)
	}
	if err := s.loadIndex(); err != nil {
		return nil, fmt.Errorf("flatfile.Open: %w", err)
	}
	return s, nil
}

// Path returns the absolute path of the data file.
func (s *Store) Path() string { return s.path }

// Len returns the number of live ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// loadIndex scans the data file top to bottom. Lines that fail to parse
// are logged and skipped so one bad line does not make the rest of the
// file unreachable.
func (s *Store) loadIndex() error {
	s.index = make(map[int64]location)
	s.size = 0

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var offset int64
	lineNo := 0
	for {
		raw, readErr := r.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read data file: %w", readErr)
		}
		if len(raw) == 0 && readErr == io.EOF {
			break
		}
		lineNo++
		content := bytes.TrimRight(raw, "\r\n")

		if len(content) > 0 {
			parsed, err := parseLine(string(content))
			switch {
			case err != nil:
				s.log.Warn("skipping malformed line",
					slog.String("path", s.path),
					slog.Int("line", lineNo),
					slog.String("error", err.Error()))
			case parsed.tombstone:
				delete(s.index, parsed.id)
			default:
				// first live record for an id wins
				if _, ok := s.index[parsed.id]; !ok {
					s.index[parsed.id] = location{offset: offset, size: len(content)}
				}
			}
		}

		offset += int64(len(raw))
		if readErr == io.EOF {
			break
		}
	}
	s.size = offset
	return nil
}

// appendLine writes ln to the end of the data file, preceded by a newline
// when the file already has content. Returns the offset of ln.
// Must be called with s.mu held for writing.
func (s *Store) appendLine(ln string) (int64, error) {
	var buf []byte
	if s.size > 0 {
		buf = append(buf, '\n')
	}
	offset := s.size + int64(len(buf))
	buf = append(buf, ln...)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return 0, err
	}
	_, err = f.Write(buf)
	if err == nil {
		err = f.Sync()
	}
	if errClose := f.Close(); err == nil {
		err = errClose
	}
	if err != nil {
		// a partial write may have landed; resync size with the file
		if st, statErr := os.Stat(s.path); statErr == nil {
			s.size = st.Size()
		}
		return 0, err
	}
	s.size += int64(len(buf))
	return offset, nil
}

// Save validates st and appends it as one line. The record is returned
// unchanged, even on failure.
func (s *Store) Save(ctx context.Context, st types.Student) (types.Student, error) {
	if err := ctx.Err(); err != nil {
		return st, err
	}
	if err := types.Validate(st); err != nil {
		return st, fmt.Errorf("flatfile.Save: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return st, storage.Fault("flatfile.Save", ErrClosed)
	}

	ln := formatRecord(st)
	offset, err := s.appendLine(ln)
	if err != nil {
		return st, storage.Fault("flatfile.Save", err)
	}

	if _, ok := s.index[st.ID]; !ok {
		s.index[st.ID] = location{offset: offset, size: len(ln)}
	}
	return st, nil
}

// FindByID returns the first live record with the given id.
func (s *Store) FindByID(ctx context.Context, id int64) (types.Student, error) {
	if err := ctx.Err(); err != nil {
		return types.Student{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.Student{}, storage.Fault("flatfile.FindByID", ErrClosed)
	}

	loc, ok := s.index[id]
	if !ok {
		return types.Student{}, fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}

	raw, err := s.readAt(loc)
	if err != nil {
		return types.Student{}, storage.Fault("flatfile.FindByID", err)
	}
	parsed, err := parseLine(string(raw))
	if err != nil {
		return types.Student{}, storage.Fault("flatfile.FindByID", err)
	}
	if parsed.tombstone || parsed.id != id {
		return types.Student{}, storage.Fault("flatfile.FindByID",
			fmt.Errorf("index out of sync at offset %d: want id %d, got %d", loc.offset, id, parsed.id))
	}
	return parsed.student, nil
}

func (s *Store) readAt(loc location) ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, loc.size)
	if _, err := f.ReadAt(buf, loc.offset); err != nil {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", loc.size, loc.offset, err)
	}
	return buf, nil
}

// Delete appends a tombstone for id. Every record saved with id before
// the tombstone becomes unreachable; a later Save with the same id
// starts fresh.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.Fault("flatfile.Delete", ErrClosed)
	}
	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}

	if _, err := s.appendLine(formatTombstone(id)); err != nil {
		return storage.Fault("flatfile.Delete", err)
	}
	delete(s.index, id)
	return nil
}

// List returns every live record in the order it was first saved.
func (s *Store) List(ctx context.Context) ([]types.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.Fault("flatfile.List", ErrClosed)
	}

	lines, err := s.liveLines()
	if err != nil {
		return nil, storage.Fault("flatfile.List", err)
	}

	students := make([]types.Student, 0, len(lines))
	for _, ln := range lines {
		parsed, err := parseLine(ln)
		if err != nil {
			return nil, storage.Fault("flatfile.List", err)
		}
		students = append(students, parsed.student)
	}
	return students, nil
}

// liveLines returns the raw text of every indexed record, ordered by
// offset. Must be called with s.mu held.
func (s *Store) liveLines() ([]string, error) {
	locs := make([]location, 0, len(s.index))
	for _, loc := range s.index {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].offset < locs[j].offset })
	if len(locs) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(locs))
	for _, loc := range locs {
		end := loc.offset + int64(loc.size)
		if end > int64(len(data)) {
			return nil, fmt.Errorf("record at offset %d exceeds file size %d", loc.offset, len(data))
		}
		lines = append(lines, string(data[loc.offset:end]))
	}
	return lines, nil
}

// Compact rewrites the data file so it holds only live records, dropping
// tombstones, shadowed duplicates, and malformed lines. The new file
// replaces the old one atomically.
func (s *Store) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.Fault("flatfile.Compact", ErrClosed)
	}

	lines, err := s.liveLines()
	if err != nil {
		return storage.Fault("flatfile.Compact", err)
	}
	before := s.size

	var buf bytes.Buffer
	for i, ln := range lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(ln)
	}
	f, err := atomicfile.New(s.path)
	if err != nil {
		return storage.Fault("flatfile.Compact", err)
	}
	defer f.RemoveIfNotClosed()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return storage.Fault("flatfile.Compact", err)
	}
	if err := f.Close(); err != nil {
		return storage.Fault("flatfile.Compact", err)
	}
	if err := s.loadIndex(); err != nil {
		return storage.Fault("flatfile.Compact", err)
	}

	s.log.Info("data file compacted",
		slog.String("path", s.path),
		slog.Int("records", len(s.index)),
		slog.Int64("bytes_before", before),
		slog.Int64("bytes_after", s.size))
	return nil
}

// Close releases the index. Calls after Close fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.index = nil
	return nil
}

var _ storage.Storage = (*Store)(nil)
