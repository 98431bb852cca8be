package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spigell/interview-conductor/internal/interview"
)

const (
	fileExt    = ".json"
	archiveDir = "archive"
	defaultDir = ".interviews"
)

// FileStore keeps one JSON document per session in a directory. Writes go to
// a temp file in the same directory which is synced and renamed over the
// previous checkpoint.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(filepath.Join(dir, archiveDir), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(f.dir, id+fileExt), nil
}

// Save writes the checkpoint atomically.
func (f *FileStore) Save(ctx context.Context, s *interview.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(s, now())
	if err != nil {
		return err
	}
	target, err := f.path(s.ID)
	if err != nil {
		return err
	}

	return writeAtomic(f.dir, target, data)
}

func writeAtomic(dir, target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}

	return syncDir(dir)
}

// syncDir persists the rename. Filesystems that cannot fsync a directory are ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, errors.ErrUnsupported) {
		return fmt.Errorf("sync checkpoint dir: %w", err)
	}
	return nil
}

// Load reads and validates the live checkpoint.
func (f *FileStore) Load(ctx context.Context, sessionID string) (*interview.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := f.path(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", sessionID, interview.ErrCheckpointNotFound)
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	cp, err := Decode(sessionID, data)
	if err != nil {
		return nil, err
	}
	return cp.Session, nil
}

// Archive moves the checkpoint into the archive subdirectory.
func (f *FileStore) Archive(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := f.path(sessionID)
	if err != nil {
		return err
	}

	dest := filepath.Join(f.dir, archiveDir, sessionID+fileExt)
	if err := os.Rename(target, dest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("session %s: %w", sessionID, interview.ErrCheckpointNotFound)
		}
		return fmt.Errorf("archive checkpoint: %w", err)
	}
	return syncDir(f.dir)
}

// List returns summaries of live checkpoints. Unreadable documents are skipped.
func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	var list []Summary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			continue
		}
		cp, err := Decode(strings.TrimSuffix(name, fileExt), data)
		if err != nil {
			continue
		}
		list = append(list, summarize(cp))
	}

	sortSummaries(list)
	return list, nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
