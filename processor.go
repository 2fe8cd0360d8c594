package mempool

import (
	"context"

	"github.com/astra-chain/mempool/digest"
	"github.com/astra-chain/mempool/storage"
)

// Processor hashes each batch it receives, persists it under that
// digest, and notifies consensus of the new digest (spec §4.3). A
// mempool runs two independent Processor instances sharing the same
// Store: one fed by the local QuorumWaiter, one fed by batches received
// from peers (spec §9/§12), since either direction can be the first to
// see a given batch.
type Processor struct {
	store       storage.Store
	log         Logger
	inCh        <-chan SerializedBatch
	txConsensus chan<- Digest
	exitCh      <-chan struct{}
}

// NewProcessor wires a Processor. inCh delivers sealed or received
// batches; txConsensus receives the digest of every batch this Processor
// persists successfully, including one Store already held.
func NewProcessor(store storage.Store, log Logger, inCh <-chan SerializedBatch, txConsensus chan<- Digest, exitCh <-chan struct{}) *Processor {
	return &Processor{
		store:       store,
		log:         log,
		inCh:        inCh,
		txConsensus: txConsensus,
		exitCh:      exitCh,
	}
}

// Run persists and announces batches until exitCh fires or inCh closes.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-p.exitCh:
			return
		case <-ctx.Done():
			return
		case batch, ok := <-p.inCh:
			if !ok {
				return
			}
			p.process(ctx, batch)
		}
	}
}

func (p *Processor) process(ctx context.Context, batch SerializedBatch) {
	d := digest.Compute(batch)

	if err := p.store.Write(ctx, d, batch); err != nil {
		p.log.Errorf("processor: persist batch %s: %v", d, err)
		return
	}

	select {
	case p.txConsensus <- d:
	case <-p.exitCh:
	case <-ctx.Done():
	}
}
