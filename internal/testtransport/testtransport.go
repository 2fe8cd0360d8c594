// Package testtransport provides an in-memory transport.Sender double
// for exercising the pipeline without real network I/O.
package testtransport

import (
	"context"
	"sync"

	"github.com/astra-chain/mempool/transport"
)

// FakeSender acks every Send/Broadcast immediately unless the address is
// listed in Unreachable, in which case Send blocks until ctx is done and
// the Broadcast handle never resolves, even after Cancel.
type FakeSender struct {
	mu          sync.Mutex
	Unreachable map[string]bool
	Sent        []Sent
}

// Sent records one call to Send or one leg of a Broadcast.
type Sent struct {
	Addr string
	Data []byte
}

func (f *FakeSender) record(addr string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, Sent{Addr: addr, Data: data})
}

// SentCount returns how many sends have been recorded so far.
func (f *FakeSender) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// Send implements transport.Sender.
func (f *FakeSender) Send(ctx context.Context, data []byte, addr string) error {
	f.record(addr, data)
	if f.Unreachable[addr] {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// Broadcast implements transport.Sender.
func (f *FakeSender) Broadcast(ctx context.Context, data []byte, addrs []string) []*transport.CancelHandle {
	handles := make([]*transport.CancelHandle, len(addrs))
	for i, addr := range addrs {
		f.record(addr, data)
		_, cancel := context.WithCancel(ctx)
		h := transport.NewCancelHandle(addr, cancel)
		handles[i] = h
		if !f.Unreachable[addr] {
			h.Resolve()
		}
	}
	return handles
}
