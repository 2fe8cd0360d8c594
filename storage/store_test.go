package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/astra-chain/mempool/digest"
)

func TestMemoryStore_WriteThenRead(t *testing.T) {
	s := NewMemoryStore()
	key := digest.Compute([]byte("batch-a"))
	if err := s.Write(context.Background(), key, []byte("bytes-a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, ok, err := s.Read(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected read hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != "bytes-a" {
		t.Fatalf("expected bytes-a, got %s", v)
	}
}

func TestMemoryStore_ReadMissUnknownDigest(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Read(context.Background(), digest.Compute([]byte("nope")))
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_WriteIdempotent(t *testing.T) {
	s := NewMemoryStore()
	key := digest.Compute([]byte("batch-a"))
	if err := s.Write(context.Background(), key, []byte("bytes-a")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := s.Write(context.Background(), key, []byte("bytes-a")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	v, _, _ := s.Read(context.Background(), key)
	if string(v) != "bytes-a" {
		t.Fatalf("expected bytes-a, got %s", v)
	}
}

func TestMemoryStore_NotifyReadBeforeWrite(t *testing.T) {
	s := NewMemoryStore()
	key := digest.Compute([]byte("arrives-later"))

	done := make(chan []byte, 1)
	go func() {
		v, err := s.NotifyRead(context.Background(), key)
		if err != nil {
			t.Errorf("notify read: %v", err)
			return
		}
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.Write(context.Background(), key, []byte("late-bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case v := <-done:
		if string(v) != "late-bytes" {
			t.Fatalf("expected late-bytes, got %s", v)
		}
	case <-time.After(time.Second):
		t.Fatal("notify read never resolved")
	}
}

func TestMemoryStore_NotifyReadAfterWrite(t *testing.T) {
	s := NewMemoryStore()
	key := digest.Compute([]byte("already-there"))
	if err := s.Write(context.Background(), key, []byte("v")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := s.NotifyRead(ctx, key)
	if err != nil {
		t.Fatalf("notify read: %v", err)
	}
	if string(v) != "v" {
		t.Fatalf("expected v, got %s", v)
	}
}

func TestMemoryStore_NotifyReadCancelled(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.NotifyRead(ctx, digest.Compute([]byte("never-arrives")))
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestBoltStore_WriteReadRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mempool.db")

	key := digest.Compute([]byte("durable-batch"))
	s1, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Write(context.Background(), key, []byte("durable-bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Read(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected durable read hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != "durable-bytes" {
		t.Fatalf("expected durable-bytes, got %s", v)
	}
}

func TestFailingStore_WriteAlwaysErrors(t *testing.T) {
	s := NewFailingStore(NewMemoryStore())
	err := s.Write(context.Background(), digest.Compute([]byte("x")), []byte("y"))
	if err == nil {
		t.Fatal("expected write to fail")
	}
}
