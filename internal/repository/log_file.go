package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/pkg/clock"
)

// FileLogRepository implements LogRepository on a human-readable text file.
// Each append is one write under an exclusive lock; reads share the lock.
type FileLogRepository struct {
	path  string
	fsync bool
	clock *clock.Monotonic

	mu   sync.RWMutex
	file *os.File
}

// NewFileLogRepository opens (or creates) the log file at path. When fsync
// is set every append is synced to disk before Write returns.
func NewFileLogRepository(path string, fsync bool) (*FileLogRepository, error) {
	return newFileLogRepository(path, fsync, clock.RealClock{})
}

func newFileLogRepository(path string, fsync bool, c clock.Clock) (*FileLogRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if err := terminateRecord(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to repair log file: %w", err)
	}

	log.Printf("[FileLogRepository] Initialized with file: %s", path)
	return &FileLogRepository{
		path:  path,
		fsync: fsync,
		clock: clock.NewMonotonic(c),
		file:  f,
	}, nil
}

// terminateRecord appends the entry separator if the previous process died
// in the middle of a record, so the next append starts a fresh entry.
func terminateRecord(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	tail := make([]byte, 2)
	if size < 2 {
		tail = tail[:size]
	}
	if _, err := f.ReadAt(tail, size-int64(len(tail))); err != nil && err != io.EOF {
		return err
	}
	switch {
	case bytes.HasSuffix(tail, []byte("\n\n")):
		return nil
	case bytes.HasSuffix(tail, []byte("\n")):
		_, err = f.Write([]byte("\n"))
	default:
		_, err = f.Write([]byte("\n\n"))
	}
	return err
}

// Write appends one entry with a freshly assigned timestamp.
func (r *FileLogRepository) Write(ctx context.Context, entry model.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrStoreClosed
	}

	entry.Timestamp = r.clock.Now().Truncate(time.Millisecond)
	if _, err := r.file.Write(encodeEntry(&entry)); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	if r.fsync {
		if err := r.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync log file: %w", err)
		}
	}
	return nil
}

// Read parses the file and returns the newest entries first.
func (r *FileLogRepository) Read(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.file == nil {
		return nil, ErrStoreClosed
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	entries, corrupt, err := decodeEntries(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	if corrupt > 0 {
		log.Printf("[FileLogRepository] Skipped %d unreadable records in %s", corrupt, r.path)
	}

	return newestFirst(entries, normalizeLimit(limit)), nil
}

// Ping checks the file is still open and statable.
func (r *FileLogRepository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.file == nil {
		return ErrStoreClosed
	}
	_, err := r.file.Stat()
	return err
}

// Close syncs and closes the file. Further calls return ErrStoreClosed.
func (r *FileLogRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrStoreClosed
	}
	syncErr := r.file.Sync()
	closeErr := r.file.Close()
	r.file = nil
	if closeErr != nil {
		return closeErr
	}
	return syncErr
}

// Ensure FileLogRepository implements LogRepository
var _ LogRepository = (*FileLogRepository)(nil)
