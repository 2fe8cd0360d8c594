package storage

import (
	"context"
	"sync"

	"github.com/astra-chain/mempool/digest"
)

// notifier implements the NotifyRead fan-out shared by every Store
// implementation: a digest-keyed set of waiters, each woken with the
// written bytes the instant a write lands, regardless of whether the
// waiter subscribed before or after the write began.
type notifier struct {
	mu      sync.Mutex
	waiters map[digest.Digest][]chan []byte
}

func newNotifier() *notifier {
	return &notifier{waiters: make(map[digest.Digest][]chan []byte)}
}

// subscribe registers a one-shot channel for key. The caller must already
// have checked (via the Store's own Read) that key is not yet present,
// to avoid missing a write that landed between the check and the
// subscribe; publish resolves the race for writes that land after.
func (n *notifier) subscribe(key digest.Digest) chan []byte {
	ch := make(chan []byte, 1)
	n.mu.Lock()
	n.waiters[key] = append(n.waiters[key], ch)
	n.mu.Unlock()
	return ch
}

// publish wakes every waiter registered for key with value.
func (n *notifier) publish(key digest.Digest, value []byte) {
	n.mu.Lock()
	waiters := n.waiters[key]
	delete(n.waiters, key)
	n.mu.Unlock()
	for _, ch := range waiters {
		ch <- value
	}
}

// wait blocks on ch until it fires or ctx is cancelled.
func wait(ctx context.Context, ch chan []byte) ([]byte, error) {
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
