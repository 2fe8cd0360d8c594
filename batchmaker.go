package mempool

import (
	"context"
	"time"

	"github.com/astra-chain/mempool/transport"
)

// SealedBatch is what BatchMaker hands downstream to QuorumWaiter: the
// canonical bytes of one sealed batch alongside the in-flight broadcast
// handles QuorumWaiter will wait on.
type SealedBatch struct {
	Batch SerializedBatch
	// Handles and Voters are parallel slices: Handles[i] is the broadcast
	// ack handle for the authority Voters[i].
	Handles []*transport.CancelHandle
	Voters  []PublicKey
}

// BatchMaker buffers incoming transactions and seals a batch the instant
// either it reaches Parameters.BatchSize bytes or MaxBatchDelay elapses
// since the buffer first became non-empty, whichever comes first (spec
// §4.1). Size takes priority on an exact tie.
type BatchMaker struct {
	self       PublicKey
	committee  *Committee
	params     Parameters
	sender     transport.Sender
	log        Logger
	txCh       <-chan Transaction
	sealedCh   chan<- SealedBatch
	exitCh     <-chan struct{}
}

// NewBatchMaker wires a BatchMaker. txCh is the inbound transaction
// queue; sealedCh is where sealed batches are handed to QuorumWaiter.
func NewBatchMaker(self PublicKey, committee *Committee, params Parameters, sender transport.Sender, log Logger, txCh <-chan Transaction, sealedCh chan<- SealedBatch, exitCh <-chan struct{}) *BatchMaker {
	return &BatchMaker{
		self:      self,
		committee: committee,
		params:    params,
		sender:    sender,
		log:       log,
		txCh:      txCh,
		sealedCh:  sealedCh,
		exitCh:    exitCh,
	}
}

// Run buffers and seals batches until exitCh fires. It is meant to run in
// its own goroutine for the lifetime of the mempool.
func (m *BatchMaker) Run(ctx context.Context) {
	var buf Batch
	var timer *time.Timer
	var timerCh <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerCh = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-m.exitCh:
			return
		case <-ctx.Done():
			return

		case tx, ok := <-m.txCh:
			if !ok {
				return
			}
			buf.Transactions = append(buf.Transactions, tx)
			if timer == nil {
				timer = time.NewTimer(m.params.MaxBatchDelay)
				timerCh = timer.C
			}
			if buf.Size() >= m.params.BatchSize {
				m.seal(ctx, &buf)
				stopTimer()
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			if len(buf.Transactions) > 0 {
				m.seal(ctx, &buf)
			}
		}
	}
}

func (m *BatchMaker) seal(ctx context.Context, buf *Batch) {
	batch := *buf
	*buf = Batch{}

	serialized, err := EncodeBatch(batch)
	if err != nil {
		m.log.Errorf("batchmaker: encode batch: %v", err)
		return
	}
	wireData, err := EncodeMempoolMessage(MempoolMessage{Kind: MessageBatch, RawBatch: serialized})
	if err != nil {
		m.log.Errorf("batchmaker: encode wire envelope: %v", err)
		return
	}

	addrs := m.committee.BroadcastAddresses(m.self)
	voters := m.committee.Others(m.self)
	handles := m.sender.Broadcast(ctx, wireData, addrs)

	select {
	case m.sealedCh <- SealedBatch{Batch: serialized, Handles: handles, Voters: voters}:
	case <-m.exitCh:
		for _, h := range handles {
			h.Cancel()
		}
	case <-ctx.Done():
		for _, h := range handles {
			h.Cancel()
		}
	}
}
