package storage

import (
	"context"
	"fmt"

	"github.com/astra-chain/mempool/digest"
	bolt "go.etcd.io/bbolt"
)

var batchesBucket = []byte("batches")

// BoltStore is the durable Store implementation: every digest -> batch
// pair survives a process restart. It is backed by a single bbolt file
// with one bucket, keyed by the raw digest bytes.
type BoltStore struct {
	db       *bolt.DB
	notifier *notifier
}

// OpenBoltStore opens (creating if absent) a bbolt database at path and
// returns a ready-to-use BoltStore.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open bbolt at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(batchesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create bucket: %w", err)
	}
	return &BoltStore{db: db, notifier: newNotifier()}, nil
}

// Close releases the underlying bbolt file handle.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) Read(_ context.Context, key digest.Digest) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(batchesBucket).Get(key[:])
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (b *BoltStore) Write(_ context.Context, key digest.Digest, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(batchesBucket)
		// Idempotent: a concurrent write of identical bytes under the
		// same digest is a harmless no-op, per spec §9.
		if existing := bucket.Get(key[:]); existing != nil {
			return nil
		}
		return bucket.Put(key[:], value)
	})
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	b.notifier.publish(key, value)
	return nil
}

func (b *BoltStore) NotifyRead(ctx context.Context, key digest.Digest) ([]byte, error) {
	if v, ok, err := b.Read(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}
	ch := b.notifier.subscribe(key)
	if v, ok, err := b.Read(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}
	return wait(ctx, ch)
}
