// Package segment manages the rotating sequence of pack segments a writer
// appends sealed objects into: pack-00001.pack, pack-00002.pack, and so on.
package segment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

const (
	DefaultMaxSegmentSize = 16 * 1024 * 1024
	FileExt               = ".pack"
)

var segmentFileNamePattern = regexp.MustCompile(`^pack-(\d+)\.pack$`)

type Manager struct {
	mu             sync.Mutex
	active         *os.File
	activeID       int
	dir            string
	maxSegmentSize int64
}

type Option func(*Manager)

func WithMaxSegmentSize(n int64) Option {
	return func(m *Manager) { m.maxSegmentSize = n }
}

type segmentEntry struct {
	id   int
	name string
}

type segmentEntries []segmentEntry

func (a segmentEntries) Len() int           { return len(a) }
func (a segmentEntries) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a segmentEntries) Less(i, j int) bool { return a[i].id < a[j].id }

func isDirectoryValid(path string) error {
	fi, err := os.Stat(path)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return fmt.Errorf("path exists but is not a directory: %s", path)
	}
	return err
}

func initializeEmptyDir(m *Manager) (*Manager, error) {
	if err := m.Rotate(); err != nil {
		return nil, fmt.Errorf("failed to create first segment: %w", err)
	}
	return m, nil
}

// NewManager scans dir for pack-NNNNN.pack files, opens the
// highest-numbered one as active, or creates segment 1 if the directory
// is empty or missing.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		dir:            dir,
		maxSegmentSize: DefaultMaxSegmentSize,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := isDirectoryValid(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
			return initializeEmptyDir(m)
		}
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var found segmentEntries
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if filepath.Ext(entry.Name()) != FileExt {
			continue
		}
		matches := segmentFileNamePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		found = append(found, segmentEntry{id: id, name: entry.Name()})
	}

	if len(found) == 0 {
		return initializeEmptyDir(m)
	}

	sort.Sort(found)
	m.activeID = found[len(found)-1].id

	// O_APPEND is deliberately not used here: the pack writer punches
	// holes with lseek(SEEK_CUR) before writing non-zero runs, and
	// O_APPEND forces every write() to the current end of file
	// regardless of the preceding seek, which would silently discard
	// the hole. Seeking to the end ourselves gets the same
	// resume-from-here behavior without that conflict.
	f, err := os.OpenFile(m.idToPath(m.activeID), os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open active segment: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek to end of active segment: %w", err)
	}
	m.active = f

	return m, nil
}

func (m *Manager) idToPath(id int) string {
	return filepath.Join(m.dir, fmt.Sprintf("pack-%05d%s", id, FileExt))
}

// Active returns the active segment file and its sequence number.
func (m *Manager) Active() (*os.File, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.activeID
}

// Rotate closes the active segment, if any, and opens the next one.
func (m *Manager) Rotate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		if err := m.active.Close(); err != nil {
			return fmt.Errorf("failed to close previous segment: %w", err)
		}
	}

	m.activeID++
	f, err := os.Create(m.idToPath(m.activeID))
	if err != nil {
		return err
	}
	m.active = f
	return nil
}

// WriteActive rotates first if writing n more bytes would exceed the
// configured max segment size, then invokes fn against the active
// segment and syncs it.
func (m *Manager) WriteActive(n int, fn func(w io.Writer)) error {
	m.mu.Lock()
	if int64(n) > m.maxSegmentSize {
		m.mu.Unlock()
		return fmt.Errorf("segment: write of %d bytes exceeds max segment size %d", n, m.maxSegmentSize)
	}
	if m.active == nil {
		m.mu.Unlock()
		return errors.New("segment: active file not initialized")
	}

	stat, err := m.active.Stat()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to stat active segment: %w", err)
	}

	needRotate := stat.Size()+int64(n) > m.maxSegmentSize
	m.mu.Unlock()

	if needRotate {
		if err := m.Rotate(); err != nil {
			return fmt.Errorf("failed to rotate segment: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.active)
	if err := m.active.Sync(); err != nil {
		return fmt.Errorf("failed to sync active segment: %w", err)
	}
	return nil
}

// Close closes the active segment.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.Close()
}
