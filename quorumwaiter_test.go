package mempool

import (
	"context"
	"testing"
	"time"

	"github.com/astra-chain/mempool/transport"
)

// fourAuthorityCommittee gives self stake 1 out of a total of 4, so
// quorum (3) requires exactly two more acks beyond self.
func fourAuthorityCommittee() (*Committee, PublicKey, []PublicKey) {
	self := PublicKey{1}
	others := []PublicKey{{2}, {3}, {4}}
	auths := []Authority{{PublicKey: self, Address: "self", Stake: 1}}
	for _, pk := range others {
		auths = append(auths, Authority{PublicKey: pk, Address: "peer", Stake: 1})
	}
	c := NewCommittee(auths)
	return c, self, others
}

func TestQuorumWaiter_ReleasesAtThreshold(t *testing.T) {
	committee, self, others := fourAuthorityCommittee()

	sealedCh := make(chan SealedBatch, 1)
	readyCh := make(chan SerializedBatch, 1)
	exitCh := make(chan struct{})

	qw := NewQuorumWaiter(self, committee, noopLogger{}, sealedCh, readyCh, exitCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go qw.Run(ctx)

	h1, cancel1 := cancellableHandle("p1")
	h2, cancel2 := cancellableHandle("p2")
	h3, cancel3 := cancellableHandle("p3")
	defer cancel1()
	defer cancel2()
	defer cancel3()

	sealedCh <- SealedBatch{
		Batch:   SerializedBatch("batch-bytes"),
		Handles: []*transport.CancelHandle{h1, h2, h3},
		Voters:  others,
	}

	// Only ack two of three; quorum threshold is 3 of 4 total stake, and
	// self already contributes 1, so two more acks should release it.
	h1.Resolve()
	h2.Resolve()

	select {
	case got := <-readyCh:
		if string(got) != "batch-bytes" {
			t.Fatalf("unexpected batch bytes: %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("batch never released at quorum")
	}
}

func cancellableHandle(addr string) (*transport.CancelHandle, context.CancelFunc) {
	_, cancel := context.WithCancel(context.Background())
	return transport.NewCancelHandle(addr, cancel), cancel
}
