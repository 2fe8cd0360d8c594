package mempool

import (
	"context"
	"testing"
	"time"

	"github.com/astra-chain/mempool/digest"
	"github.com/astra-chain/mempool/storage"
)

func TestProcessor_PersistsAndNotifies(t *testing.T) {
	store := storage.NewMemoryStore()
	inCh := make(chan SerializedBatch, 1)
	txConsensus := make(chan Digest, 1)
	exitCh := make(chan struct{})

	p := NewProcessor(store, noopLogger{}, inCh, txConsensus, exitCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	batch := SerializedBatch("batch-bytes")
	inCh <- batch

	select {
	case d := <-txConsensus:
		want := digest.Compute(batch)
		if d != want {
			t.Fatalf("digest = %s, want %s", d, want)
		}
	case <-time.After(time.Second):
		t.Fatal("processor never notified consensus")
	}

	got, found, err := store.Read(context.Background(), digest.Compute(batch))
	if err != nil || !found {
		t.Fatalf("expected batch to be persisted, found=%v err=%v", found, err)
	}
	if string(got) != string(batch) {
		t.Fatalf("stored bytes = %q, want %q", got, batch)
	}
}

func TestProcessor_FailingStoreNeverNotifiesConsensus(t *testing.T) {
	store := storage.NewFailingStore(storage.NewMemoryStore())
	inCh := make(chan SerializedBatch, 1)
	txConsensus := make(chan Digest, 1)
	exitCh := make(chan struct{})

	p := NewProcessor(store, noopLogger{}, inCh, txConsensus, exitCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	inCh <- SerializedBatch("batch-bytes")

	select {
	case d := <-txConsensus:
		t.Fatalf("expected no digest on a persistently failing store, got %s", d)
	case <-time.After(100 * time.Millisecond):
	}
}
