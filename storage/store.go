// Package storage implements the persistent digest -> serialized-batch map
// shared by the Processor, Helper and Synchronizer.
package storage

import (
	"context"

	"github.com/astra-chain/mempool/digest"
)

// Store is the persistence seam every task holds a handle to. Writes of
// the same key with identical bytes must be idempotent, since a
// self-produced and a peer-produced Processor may race to write the same
// digest (spec §9).
type Store interface {
	// Read returns the bytes for key and true, or false if key is absent.
	Read(ctx context.Context, key digest.Digest) ([]byte, bool, error)

	// Write persists value under key. Writing the same key twice with the
	// same bytes must not error or corrupt state.
	Write(ctx context.Context, key digest.Digest, value []byte) error

	// NotifyRead blocks until key is present, then returns its bytes. It
	// must observe a write that happens concurrently with the call, not
	// only ones that precede it. It returns ctx.Err() if ctx is done
	// first, which is how callers cancel an outstanding wait.
	NotifyRead(ctx context.Context, key digest.Digest) ([]byte, error)
}
