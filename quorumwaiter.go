package mempool

import (
	"context"

	"github.com/astra-chain/mempool/transport"
)

// QuorumWaiter gates each sealed batch on stake-weighted quorum: it
// releases the batch downstream the instant enough broadcast handles
// have acked that, combined with the local authority's own stake, the
// committee's quorum threshold is met (spec §4.2). Any handles still
// outstanding at release time are cancelled; the wait for one batch
// never blocks the next.
type QuorumWaiter struct {
	self      PublicKey
	committee *Committee
	log       Logger
	sealedCh  <-chan SealedBatch
	readyCh   chan<- SerializedBatch
	exitCh    <-chan struct{}
}

// NewQuorumWaiter wires a QuorumWaiter. sealedCh is BatchMaker's output;
// readyCh is where quorum-certified batches are handed to Processor.
func NewQuorumWaiter(self PublicKey, committee *Committee, log Logger, sealedCh <-chan SealedBatch, readyCh chan<- SerializedBatch, exitCh <-chan struct{}) *QuorumWaiter {
	return &QuorumWaiter{
		self:      self,
		committee: committee,
		log:       log,
		sealedCh:  sealedCh,
		readyCh:   readyCh,
		exitCh:    exitCh,
	}
}

// Run waits for each sealed batch to clear quorum and forwards it, until
// exitCh fires. Each batch's quorum wait starts as soon as the batch
// arrives and runs in its own goroutine, concurrently with the waits of
// earlier batches.
func (q *QuorumWaiter) Run(ctx context.Context) {
	for {
		select {
		case <-q.exitCh:
			return
		case <-ctx.Done():
			return
		case sealed, ok := <-q.sealedCh:
			if !ok {
				return
			}
			go q.await(ctx, sealed)
		}
	}
}

type quorumVote struct {
	stake uint64
}

func (q *QuorumWaiter) await(ctx context.Context, sealed SealedBatch) {
	threshold := q.committee.QuorumThreshold()
	accumulated := q.committee.Stake(q.self)

	// votes fans every handle's ack into one channel so we can wait on
	// whichever arrives first without polling each handle individually.
	votes := make(chan quorumVote, len(sealed.Handles))
	for i, h := range sealed.Handles {
		stake := q.committee.Stake(sealed.Voters[i])
		go func(h *transport.CancelHandle, stake uint64) {
			select {
			case <-h.Acked():
				select {
				case votes <- quorumVote{stake: stake}:
				case <-ctx.Done():
				}
			case <-ctx.Done():
			}
		}(h, stake)
	}

	remaining := len(sealed.Handles)
	for remaining > 0 && accumulated < threshold {
		select {
		case v := <-votes:
			accumulated += v.stake
			remaining--
		case <-q.exitCh:
			cancelAll(sealed.Handles)
			return
		case <-ctx.Done():
			cancelAll(sealed.Handles)
			return
		}
	}

	if accumulated < threshold {
		q.log.Warnf("quorumwaiter: batch failed to reach quorum (%d/%d)", accumulated, threshold)
		cancelAll(sealed.Handles)
		return
	}

	cancelAll(sealed.Handles)

	select {
	case q.readyCh <- sealed.Batch:
	case <-q.exitCh:
	case <-ctx.Done():
	}
}

func cancelAll(handles []*transport.CancelHandle) {
	for _, h := range handles {
		h.Cancel()
	}
}
