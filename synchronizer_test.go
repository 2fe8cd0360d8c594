package mempool

import (
	"context"
	"testing"
	"time"

	"github.com/astra-chain/mempool/internal/testtransport"
	"github.com/astra-chain/mempool/storage"
)

func TestSynchronizer_StopsRetryingOnceStored(t *testing.T) {
	committee, self, others := fourAuthorityCommittee()
	store := storage.NewMemoryStore()
	sender := &testtransport.FakeSender{}
	params := Parameters{GCDepth: 100, SyncRetryDelay: 10 * time.Millisecond, SyncRetryNodes: 2}

	syncCh := make(chan SynchronizeRequest, 1)
	cleanupCh := make(chan Round, 1)
	exitCh := make(chan struct{})

	s := NewSynchronizer(self, committee, store, sender, params, noopLogger{}, syncCh, cleanupCh, exitCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var d Digest
	d[0] = 0x42
	syncCh <- SynchronizeRequest{Digests: []Digest{d}, Target: others[0]}

	// Let at least one retry cycle pass, then satisfy the digest.
	time.Sleep(25 * time.Millisecond)
	if err := store.Write(context.Background(), d, []byte("found")); err != nil {
		t.Fatalf("write: %v", err)
	}

	sentBefore := sender.SentCount()
	time.Sleep(50 * time.Millisecond)
	sentAfter := sender.SentCount()
	if sentAfter-sentBefore > 1 {
		t.Fatalf("expected synchronizer to stop retrying once stored, sent %d more requests", sentAfter-sentBefore)
	}
}

func TestSynchronizer_RetryWaveFansOutToMultiplePeersAtOnce(t *testing.T) {
	committee, self, others := fourAuthorityCommittee()
	store := storage.NewMemoryStore()
	sender := &testtransport.FakeSender{}
	// SyncRetryNodes=2 and there are exactly 2 committee members left
	// once the target is excluded, so the very first retry wave must
	// reach both of them in one SyncRetryDelay tick, not one per tick.
	params := Parameters{GCDepth: 100, SyncRetryDelay: 30 * time.Millisecond, SyncRetryNodes: 2}

	syncCh := make(chan SynchronizeRequest, 1)
	cleanupCh := make(chan Round, 1)
	exitCh := make(chan struct{})

	s := NewSynchronizer(self, committee, store, sender, params, noopLogger{}, syncCh, cleanupCh, exitCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var d Digest
	d[0] = 0x99
	syncCh <- SynchronizeRequest{Digests: []Digest{d}, Target: others[0]}

	// One-peer-per-tick would need two full SyncRetryDelay ticks (60ms)
	// to reach 3 total sends (target + 2 retries); a single fanned-out
	// wave reaches it within one tick (~30ms).
	deadline := time.After(55 * time.Millisecond)
	for {
		if sender.SentCount() >= 3 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected target + one full retry wave (3 sends) within a single retry window, got %d", sender.SentCount())
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestSynchronizer_CleanupAbandonsExpiredDigest(t *testing.T) {
	committee, self, others := fourAuthorityCommittee()
	store := storage.NewMemoryStore()
	sender := &testtransport.FakeSender{}
	params := Parameters{GCDepth: 2, SyncRetryDelay: 10 * time.Millisecond, SyncRetryNodes: 2}

	syncCh := make(chan SynchronizeRequest, 1)
	cleanupCh := make(chan Round, 1)
	exitCh := make(chan struct{})

	s := NewSynchronizer(self, committee, store, sender, params, noopLogger{}, syncCh, cleanupCh, exitCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var d Digest
	d[0] = 0x7
	syncCh <- SynchronizeRequest{Digests: []Digest{d}, Target: others[0]}
	time.Sleep(15 * time.Millisecond)

	cleanupCh <- Round(10)

	time.Sleep(30 * time.Millisecond)
	sentAfterAbandon := sender.SentCount()
	time.Sleep(30 * time.Millisecond)
	if sender.SentCount() > sentAfterAbandon {
		t.Fatal("expected synchronizer to stop sending requests for an abandoned digest")
	}

	if _, found, _ := store.Read(context.Background(), d); found {
		t.Fatal("digest should not have been stored")
	}
}
