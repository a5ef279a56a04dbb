package keys

import "context"

// Backend is where key material lives. Implementations must be safe to share
// between replicas: Get and Put address named blobs, Lock provides a named
// exclusive lock that holds across processes.
type Backend interface {
	// Get returns the blob stored under name, or an error wrapping
	// common.ErrKeyNotFound when there is none.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put stores data under name, replacing any previous value.
	Put(ctx context.Context, name string, data []byte) error

	// Lock blocks until the named lock is held or ctx is done. On timeout the
	// error wraps common.ErrKeyLockTimeout. The returned func releases the lock
	// and must be called on every exit path.
	Lock(ctx context.Context, name string) (unlock func() error, err error)
}
