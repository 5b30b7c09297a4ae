package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "studysync/internal/platform/errors"
)

// LockGuard serializes sync runs across processes with an advisory lock on
// <dataDir>/sync.lock.
type LockGuard struct {
	path string
}

func NewLockGuard(dataDir string) *LockGuard {
	return &LockGuard{path: filepath.Join(dataDir, "sync.lock")}
}

func (g *LockGuard) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(g.path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s is held", apperrors.ErrSyncInProgress, g.path)
	}
	return func() { _ = lock.Unlock() }, nil
}
