package storage

import (
	"context"
	"errors"

	"github.com/astra-chain/mempool/digest"
)

// ErrWriteFailed is returned, unwrapped, by every FailingStore Write.
var ErrWriteFailed = errors.New("storage: write failed")

// FailingStore wraps a Store and makes every Write fail, while Read and
// NotifyRead still observe the wrapped Store directly. It exists to drive
// the boundary scenario in spec §8: persistently failing writes must not
// emit consensus notifications and must not panic.
type FailingStore struct {
	inner Store
}

// NewFailingStore wraps inner so all writes through the returned Store
// fail with ErrWriteFailed.
func NewFailingStore(inner Store) *FailingStore {
	return &FailingStore{inner: inner}
}

func (f *FailingStore) Read(ctx context.Context, key digest.Digest) ([]byte, bool, error) {
	return f.inner.Read(ctx, key)
}

func (f *FailingStore) Write(context.Context, digest.Digest, []byte) error {
	return ErrWriteFailed
}

func (f *FailingStore) NotifyRead(ctx context.Context, key digest.Digest) ([]byte, error) {
	return f.inner.NotifyRead(ctx, key)
}
