// Package mempool implements the transaction mempool core of a BFT
// consensus validator: batching client transactions, certifying them
// with a stake-weighted quorum of acknowledgements, persisting them by
// content digest, and reconciling digests consensus references but does
// not yet have (Narwhal/HotStuff-style mempool design).
package mempool

import (
	"context"
	"fmt"

	"github.com/astra-chain/mempool/internal/exit"
	"github.com/astra-chain/mempool/logging"
	"github.com/astra-chain/mempool/storage"
	"github.com/astra-chain/mempool/transport"
)

// SpawnConfig is everything needed to start one node's mempool pipeline.
type SpawnConfig struct {
	Self       PublicKey
	Committee  *Committee
	Parameters Parameters
	Store      storage.Store
	Sender     transport.Sender

	// TxHandlers receives the client-transaction ingestion handler at
	// Self's validator id; MempoolHandlers receives the peer mempool
	// message handler, also at Self's validator id. Both are owned by
	// the caller's transport, which dispatches inbound frames into them.
	TxHandlers      *transport.HandlerMap
	MempoolHandlers *transport.HandlerMap
	ValidatorID     uint64

	// TxConsensus receives the digest of every batch this node persists,
	// whether sealed locally or received from a peer (spec §3, §4.3). A
	// batch that arrives again is written again (a no-op in Store) and
	// its digest is sent again.
	TxConsensus chan<- Digest
	// RxConsensus delivers SynchronizeRequests from consensus for
	// digests it has referenced but does not yet have (spec §4.5).
	RxConsensus <-chan SynchronizeRequest
	// RxCleanup delivers round advancement notices bounding how long a
	// Synchronizer entry may remain outstanding (spec §4.5).
	RxCleanup <-chan Round

	Log Logger
}

// Mempool holds every running task of one node's pipeline, wired and
// started by Spawn.
type Mempool struct {
	exit *exit.Signal

	BatchMaker   *BatchMaker
	QuorumWaiter *QuorumWaiter
	LocalProc    *Processor
	RemoteProc   *Processor
	Helper       *Helper
	Synchronizer *Synchronizer
}

// Spawn wires and starts every task in the pipeline, registers the
// client-tx and peer-mempool receive handlers into their respective
// HandlerMaps, and returns the running Mempool. Shutdown is triggered by
// cancelling ctx or calling Close; either one also removes both receive
// handlers from their HandlerMaps.
//
// Wiring order mirrors the original design: Synchronizer is started
// first, then the local sealing branch
// (BatchMaker -> QuorumWaiter -> Processor), then the remote receipt
// branch (Helper and a second Processor), and finally the two receive
// handlers are registered so inbound frames start flowing.
func Spawn(ctx context.Context, cfg SpawnConfig) (*Mempool, error) {
	if !cfg.Committee.Contains(cfg.Self) {
		return nil, ErrNotInCommittee
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewDefaultLogger()
	}
	cfg.Parameters.LogFields(cfg.Log)

	chanCap := cfg.Parameters.channelCapacity()
	sig := exit.New()

	txCh := make(chan Transaction, chanCap)
	sealedCh := make(chan SealedBatch, chanCap)
	localReadyCh := make(chan SerializedBatch, chanCap)
	remoteReadyCh := make(chan SerializedBatch, chanCap)
	helperReqCh := make(chan BatchRequestIn, chanCap)
	syncCh := make(chan SynchronizeRequest, chanCap)
	cleanupCh := make(chan Round, chanCap)

	go forwardSync(sig.Done(), cfg.RxConsensus, syncCh)
	go forwardCleanup(sig.Done(), cfg.RxCleanup, cleanupCh)

	synchronizer := NewSynchronizer(cfg.Self, cfg.Committee, cfg.Store, cfg.Sender, cfg.Parameters, cfg.Log, syncCh, cleanupCh, sig.Done())
	go synchronizer.Run(ctx)

	batchMaker := NewBatchMaker(cfg.Self, cfg.Committee, cfg.Parameters, cfg.Sender, cfg.Log, txCh, sealedCh, sig.Done())
	go batchMaker.Run(ctx)

	quorumWaiter := NewQuorumWaiter(cfg.Self, cfg.Committee, cfg.Log, sealedCh, localReadyCh, sig.Done())
	go quorumWaiter.Run(ctx)

	localProcessor := NewProcessor(cfg.Store, cfg.Log, localReadyCh, cfg.TxConsensus, sig.Done())
	go localProcessor.Run(ctx)

	helper := NewHelper(cfg.Store, cfg.Committee, cfg.Sender, cfg.Log, helperReqCh, sig.Done())
	go helper.Run(ctx)

	remoteProcessor := NewProcessor(cfg.Store, cfg.Log, remoteReadyCh, cfg.TxConsensus, sig.Done())
	go remoteProcessor.Run(ctx)

	cfg.TxHandlers.Register(cfg.ValidatorID, &TxReceiverHandler{txCh: txCh, log: cfg.Log})
	cfg.MempoolHandlers.Register(cfg.ValidatorID, &MempoolReceiverHandler{
		batchCh:   remoteReadyCh,
		requestCh: helperReqCh,
		log:       cfg.Log,
	})

	go func() {
		select {
		case <-ctx.Done():
			sig.Fire()
		case <-sig.Done():
		}
		cfg.TxHandlers.Remove(cfg.ValidatorID)
		cfg.MempoolHandlers.Remove(cfg.ValidatorID)
	}()

	return &Mempool{
		exit:         sig,
		BatchMaker:   batchMaker,
		QuorumWaiter: quorumWaiter,
		LocalProc:    localProcessor,
		RemoteProc:   remoteProcessor,
		Helper:       helper,
		Synchronizer: synchronizer,
	}, nil
}

// Close fires the shared exit signal, stopping every task.
func (m *Mempool) Close() {
	m.exit.Fire()
}

func forwardSync(exitCh <-chan struct{}, in <-chan SynchronizeRequest, out chan<- SynchronizeRequest) {
	for {
		select {
		case <-exitCh:
			return
		case req, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- req:
			case <-exitCh:
				return
			}
		}
	}
}

func forwardCleanup(exitCh <-chan struct{}, in <-chan Round, out chan<- Round) {
	for {
		select {
		case <-exitCh:
			return
		case r, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- r:
			case <-exitCh:
				return
			}
		}
	}
}

// TxReceiverHandler is the client-transaction ingestion port (spec
// §4.6): every inbound frame is handed straight to BatchMaker as an
// opaque Transaction. Validity of the bytes is the client's
// responsibility; this handler never inspects them.
type TxReceiverHandler struct {
	txCh chan<- Transaction
	log  Logger
}

// Dispatch implements transport.MessageHandler. Client transactions get
// no ack: the connection is simply closed once the transaction has been
// queued, matching a fire-and-forget submission port.
func (h *TxReceiverHandler) Dispatch(ctx context.Context, reply func([]byte) error, payload []byte) error {
	tx := make(Transaction, len(payload))
	copy(tx, payload)
	select {
	case h.txCh <- tx:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MempoolReceiverHandler is the peer mempool message port (spec §4.6):
// it deserializes the frame and routes Batch messages to this node's
// remote Processor and BatchRequest messages to Helper. An ack is sent
// back once the message has been parsed into a known variant, before it
// is routed onward; malformed frames are logged and dropped without an
// ack.
type MempoolReceiverHandler struct {
	batchCh   chan<- SerializedBatch
	requestCh chan<- BatchRequestIn
	log       Logger
}

// Dispatch implements transport.MessageHandler.
func (h *MempoolReceiverHandler) Dispatch(ctx context.Context, reply func([]byte) error, payload []byte) error {
	msg, err := DecodeMempoolMessage(payload)
	if err != nil {
		h.log.Warnf("mempool: malformed peer frame: %v", err)
		return err
	}
	if msg.Kind != MessageBatch && msg.Kind != MessageBatchRequest {
		h.log.Warnf("mempool: unknown message kind %d", msg.Kind)
		return fmt.Errorf("mempool: unknown message kind %d", msg.Kind)
	}

	if reply != nil {
		if err := reply(nil); err != nil {
			return err
		}
	}

	switch msg.Kind {
	case MessageBatch:
		// Forward the exact bytes the sender hashed: never re-encode
		// msg.RawBatch, so this node's digest matches the sender's.
		select {
		case h.batchCh <- msg.RawBatch:
		case <-ctx.Done():
			return ctx.Err()
		}

	case MessageBatchRequest:
		select {
		case h.requestCh <- BatchRequestIn{Digests: msg.Missing, Requestor: msg.Requestor}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
