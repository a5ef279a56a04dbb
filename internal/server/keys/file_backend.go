package keys

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/gofrs/flock"
)

const defaultFileLockRetry = 50 * time.Millisecond

// FileBackend keeps key material as files in a directory, typically a volume
// mounted into every replica. Locking uses flock(2) on a sibling lock file.
type FileBackend struct {
	dir        string
	retryDelay time.Duration
}

// NewFileBackend creates dir if needed and returns a backend rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := filex.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir, retryDelay: defaultFileLockRetry}, nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name)
}

func (b *FileBackend) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrKeyNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (b *FileBackend) Put(_ context.Context, name string, data []byte) error {
	return filex.WriteFileAtomic(b.path(name), data, 0o600)
}

// Lock polls for an exclusive flock until it succeeds or ctx is done. The lock
// file itself is left in place; removing it would let a waiter lock an
// unlinked inode.
func (b *FileBackend) Lock(ctx context.Context, name string) (func() error, error) {
	fl := flock.New(b.path(name + ".lock"))

	locked, err := fl.TryLockContext(ctx, b.retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrKeyLockTimeout, name, err)
		}
		return nil, fmt.Errorf("flock %s: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", common.ErrKeyLockTimeout, name)
	}

	return fl.Unlock, nil
}
