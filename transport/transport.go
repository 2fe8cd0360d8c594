// Package transport provides the peer-to-peer send/receive primitives the
// mempool core is built on: a reliable-ish broadcast/unicast sender whose
// sends resolve into cancellable acknowledgement handles, and a receive
// side that multiplexes inbound frames to per-validator handlers.
package transport

import (
	"context"
	"sync"

	promlog "github.com/prometheus/common/log"
)

// CancelHandle represents one in-flight send awaiting a peer's
// acknowledgement. QuorumWaiter holds one per broadcast peer and cancels
// whichever are still outstanding once quorum is reached.
type CancelHandle struct {
	addr   string
	acked  chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

func newCancelHandle(addr string, cancel context.CancelFunc) *CancelHandle {
	return &CancelHandle{addr: addr, acked: make(chan struct{}), cancel: cancel}
}

// NewCancelHandle constructs a CancelHandle for Sender implementations
// other than TCPTransport (in-memory test doubles, alternate
// transports). cancel is invoked when Cancel is called on the returned
// handle.
func NewCancelHandle(addr string, cancel context.CancelFunc) *CancelHandle {
	return newCancelHandle(addr, cancel)
}

// Resolve marks h as acknowledged. Exported so Sender implementations
// other than TCPTransport can signal an ack.
func (h *CancelHandle) Resolve() {
	h.resolve()
}

// Address is the peer this handle's send was addressed to.
func (h *CancelHandle) Address() string {
	return h.addr
}

// Acked is closed the instant the peer's acknowledgement arrives.
func (h *CancelHandle) Acked() <-chan struct{} {
	return h.acked
}

// resolve marks the handle as acknowledged. Safe to call more than once
// per handle; only the first call has an effect.
func (h *CancelHandle) resolve() {
	h.once.Do(func() { close(h.acked) })
}

// Cancel aborts the in-flight send. A handle that has already resolved
// ignores Cancel.
func (h *CancelHandle) Cancel() {
	h.cancel()
}

// Sender is the network send layer consumed by BatchMaker, QuorumWaiter
// (implicitly, through the handles Broadcast returns), Helper and
// Synchronizer.
type Sender interface {
	// Broadcast sends data to every address in addrs and returns one
	// CancelHandle per address, each resolving when that peer ACKs.
	Broadcast(ctx context.Context, data []byte, addrs []string) []*CancelHandle

	// Send delivers data to a single address, waiting for the peer's ACK
	// or ctx's cancellation, whichever comes first.
	Send(ctx context.Context, data []byte, addr string) error
}

// MessageHandler is implemented by each receive-side adapter (the
// client-transaction handler, the mempool-message handler). Dispatch is
// invoked once per inbound frame; reply, if non-nil, writes back to the
// same connection the frame arrived on.
type MessageHandler interface {
	Dispatch(ctx context.Context, reply func([]byte) error, payload []byte) error
}

// HandlerMap is the concurrent validator_id -> MessageHandler mapping
// described in spec §4.6/§9: owned by the transport, which looks up
// handlers on every inbound frame; the mempool inserts its handler at
// startup and removes it at shutdown.
type HandlerMap struct {
	mu       sync.RWMutex
	handlers map[uint64]MessageHandler
}

// NewHandlerMap returns an empty, ready-to-use HandlerMap.
func NewHandlerMap() *HandlerMap {
	return &HandlerMap{handlers: make(map[uint64]MessageHandler)}
}

// Register installs handler for validatorID, replacing any existing
// handler for that id. HandlerMap is shared infrastructure owned by
// whichever transport instances dispatch through it rather than by a
// single logger-holding task, so a replacement is logged through the
// package-level logger rather than a per-call one.
func (m *HandlerMap) Register(validatorID uint64, handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handlers[validatorID]; exists {
		promlog.Warnf("transport: replacing handler already registered for validator %d", validatorID)
	}
	m.handlers[validatorID] = handler
}

// Remove uninstalls the handler for validatorID, if any.
func (m *HandlerMap) Remove(validatorID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, validatorID)
}

// Lookup returns the handler registered for validatorID, if any.
func (m *HandlerMap) Lookup(validatorID uint64) (MessageHandler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[validatorID]
	return h, ok
}
