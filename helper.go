package mempool

import (
	"context"

	"github.com/astra-chain/mempool/storage"
	"github.com/astra-chain/mempool/transport"
)

// BatchRequestIn is one inbound back-fill request: requestor wants
// whichever of digests this node already has.
type BatchRequestIn struct {
	Digests   []Digest
	Requestor PublicKey
}

// Helper services BatchRequests received from peers (spec §4.4): for
// each requested digest it owns, it reads the batch out of Store and
// sends it back to the requestor; unknown digests are silently skipped.
// Requests are serviced one at a time, in arrival order.
type Helper struct {
	store     storage.Store
	committee *Committee
	sender    transport.Sender
	log       Logger
	inCh      <-chan BatchRequestIn
	exitCh    <-chan struct{}
}

// NewHelper wires a Helper.
func NewHelper(store storage.Store, committee *Committee, sender transport.Sender, log Logger, inCh <-chan BatchRequestIn, exitCh <-chan struct{}) *Helper {
	return &Helper{
		store:     store,
		committee: committee,
		sender:    sender,
		log:       log,
		inCh:      inCh,
		exitCh:    exitCh,
	}
}

// Run services requests until exitCh fires or inCh closes.
func (h *Helper) Run(ctx context.Context) {
	for {
		select {
		case <-h.exitCh:
			return
		case <-ctx.Done():
			return
		case req, ok := <-h.inCh:
			if !ok {
				return
			}
			h.service(ctx, req)
		}
	}
}

func (h *Helper) service(ctx context.Context, req BatchRequestIn) {
	addr, ok := h.committee.MempoolAddress(req.Requestor)
	if !ok {
		h.log.Warnf("helper: batch request from unknown authority %s", req.Requestor)
		return
	}

	for _, d := range req.Digests {
		batch, found, err := h.store.Read(ctx, d)
		if err != nil {
			h.log.Errorf("helper: read batch %s: %v", d, err)
			continue
		}
		if !found {
			continue
		}

		// Forward the stored bytes verbatim (no decode/re-encode): the
		// requestor must compute the same digest this node did.
		msg := MempoolMessage{Kind: MessageBatch, RawBatch: SerializedBatch(batch)}
		data, err := EncodeMempoolMessage(msg)
		if err != nil {
			h.log.Errorf("helper: encode reply for batch %s: %v", d, err)
			continue
		}

		if err := h.sender.Send(ctx, data, addr); err != nil {
			h.log.Warnf("helper: send batch %s to %s: %v", d, addr, err)
		}
	}
}
