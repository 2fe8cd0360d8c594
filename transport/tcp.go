package transport

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/astra-chain/mempool/logging"
)

// frame is the on-wire envelope every message travels in: which locally
// registered handler (keyed by validator id) should receive Payload.
type frame struct {
	ValidatorID uint64
	Payload     []byte
}

type ackFrame struct {
	Payload []byte
	Err     string
}

// TCPTransport is a length-framed (via gob's own stream framing),
// connection-per-request Sender and inbound dispatcher. Every Send or
// Broadcast peer dials a fresh connection, writes one frame, and waits
// for one ackFrame in reply; inbound connections are accepted on a
// single listener and routed through a HandlerMap keyed by the frame's
// ValidatorID, matching the shared-port multiplexing in spec §4.6/§9.
type TCPTransport struct {
	advertise   string
	validatorID uint64
	handlers    *HandlerMap
	logger      logging.Logger
	dialTimeout time.Duration

	listener net.Listener
	wg       sync.WaitGroup

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewTCPTransport starts listening on bindAddr and returns a transport
// that stamps validatorID on every frame it sends and routes every frame
// it receives through handlers. advertise, if non-empty, is the address
// peers should be told to dial back (useful behind NAT); the listener's
// own bound address is used otherwise.
func NewTCPTransport(bindAddr, advertise string, validatorID uint64, handlers *HandlerMap, dialTimeout time.Duration, logger logging.Logger) (*TCPTransport, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %s: %w", bindAddr, err)
	}
	if advertise == "" {
		advertise = listener.Addr().String()
	}
	t := &TCPTransport{
		advertise:   advertise,
		validatorID: validatorID,
		handlers:    handlers,
		logger:      logger,
		dialTimeout: dialTimeout,
		listener:    listener,
		closeCh:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.acceptLoop()
	return t, nil
}

// LocalAddress is the address this transport advertises to peers.
func (t *TCPTransport) LocalAddress() string {
	return t.advertise
}

func (t *TCPTransport) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
				t.logger.Errorf("transport: accept: %v", err)
				continue
			}
		}
		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

func (t *TCPTransport) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	dec := gob.NewDecoder(bufio.NewReader(conn))
	var f frame
	if err := dec.Decode(&f); err != nil {
		if err != io.EOF {
			t.logger.Warnf("transport: decode frame from %s: %v", conn.RemoteAddr(), err)
		}
		return
	}

	handler, ok := t.handlers.Lookup(f.ValidatorID)
	if !ok {
		t.logger.Warnf("transport: no handler registered for validator %d", f.ValidatorID)
		return
	}

	reply := func(payload []byte) error {
		return gob.NewEncoder(conn).Encode(ackFrame{Payload: payload})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := handler.Dispatch(ctx, reply, f.Payload); err != nil {
		t.logger.Debugf("transport: dispatch error from %s: %v", conn.RemoteAddr(), err)
	}
}

func (t *TCPTransport) dialAndSend(ctx context.Context, data []byte, addr string) ([]byte, error) {
	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := gob.NewEncoder(conn).Encode(frame{ValidatorID: t.validatorID, Payload: data}); err != nil {
		return nil, fmt.Errorf("transport: encode frame to %s: %w", addr, err)
	}

	var ack ackFrame
	if err := gob.NewDecoder(bufio.NewReader(conn)).Decode(&ack); err != nil {
		return nil, fmt.Errorf("transport: decode ack from %s: %w", addr, err)
	}
	if ack.Err != "" {
		return nil, errors.New(ack.Err)
	}
	return ack.Payload, nil
}

// Send implements Sender: deliver data to a single peer, waiting for its
// ACK or ctx's cancellation.
func (t *TCPTransport) Send(ctx context.Context, data []byte, addr string) error {
	_, err := t.dialAndSend(ctx, data, addr)
	return err
}

// Broadcast implements Sender. Each address gets its own goroutine and
// CancelHandle; a handle resolves the instant that peer's ack arrives,
// and Cancel aborts that peer's in-flight dial/send by closing its
// connection.
func (t *TCPTransport) Broadcast(ctx context.Context, data []byte, addrs []string) []*CancelHandle {
	handles := make([]*CancelHandle, 0, len(addrs))
	for _, addr := range addrs {
		peerCtx, cancel := context.WithCancel(ctx)
		handle := newCancelHandle(addr, cancel)
		handles = append(handles, handle)

		go func(addr string, peerCtx context.Context, handle *CancelHandle) {
			if _, err := t.dialAndSend(peerCtx, data, addr); err != nil {
				if peerCtx.Err() == nil {
					t.logger.Debugf("transport: broadcast to %s failed: %v", addr, err)
				}
				return
			}
			handle.resolve()
		}(addr, peerCtx, handle)
	}
	return handles
}

// Close stops accepting new connections and waits for in-flight handlers
// to finish.
func (t *TCPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		err = t.listener.Close()
	})
	t.wg.Wait()
	return err
}
