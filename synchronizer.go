package mempool

import (
	"context"
	"sync"
	"time"

	"github.com/astra-chain/mempool/storage"
	"github.com/astra-chain/mempool/transport"
)

// SynchronizeRequest asks the Synchronizer to chase down digests
// consensus has referenced but does not yet have batches for (spec
// §4.5). Target is the peer consensus learned the digests from, and is
// always tried first. There is no round on the request itself (the
// original ConsensusMempoolMessage::Synchronize carries none either,
// per original_source/.../mempool.rs): missing_since_round is stamped
// from the Synchronizer's own current_round the instant a digest is
// recorded, per spec §4.5 step 2.
type SynchronizeRequest struct {
	Digests []Digest
	Target  PublicKey
}

// Synchronizer reconciles missing digests requested by consensus: it
// back-fills each one from peers, retrying additional committee members
// round-robin every Parameters.SyncRetryDelay, and abandons a digest once
// it has fallen more than Parameters.GCDepth rounds behind the latest
// round announced via Cleanup.
type Synchronizer struct {
	self      PublicKey
	committee *Committee
	store     storage.Store
	sender    transport.Sender
	params    Parameters
	log       Logger

	syncCh    <-chan SynchronizeRequest
	cleanupCh <-chan Round
	exitCh    <-chan struct{}

	mu           sync.Mutex
	currentRound Round
	pending      map[Digest]pendingSync
}

// pendingSync tracks one outstanding Synchronize target: cancel tears
// down its watch goroutine, missingSince is the round it was first
// recorded at (spec §4.5's missing_since_round).
type pendingSync struct {
	cancel       context.CancelFunc
	missingSince Round
}

// NewSynchronizer wires a Synchronizer.
func NewSynchronizer(self PublicKey, committee *Committee, store storage.Store, sender transport.Sender, params Parameters, log Logger, syncCh <-chan SynchronizeRequest, cleanupCh <-chan Round, exitCh <-chan struct{}) *Synchronizer {
	return &Synchronizer{
		self:      self,
		committee: committee,
		store:     store,
		sender:    sender,
		params:    params,
		log:       log,
		syncCh:    syncCh,
		cleanupCh: cleanupCh,
		exitCh:    exitCh,
		pending:   make(map[Digest]pendingSync),
	}
}

// Run dispatches SynchronizeRequests and Cleanup rounds until exitCh
// fires.
func (s *Synchronizer) Run(ctx context.Context) {
	for {
		select {
		case <-s.exitCh:
			return
		case <-ctx.Done():
			return

		case req, ok := <-s.syncCh:
			if !ok {
				return
			}
			s.synchronize(ctx, req)

		case round, ok := <-s.cleanupCh:
			if !ok {
				return
			}
			s.cleanup(round)
		}
	}
}

func (s *Synchronizer) synchronize(ctx context.Context, req SynchronizeRequest) {
	for _, d := range req.Digests {
		s.mu.Lock()
		if _, already := s.pending[d]; already {
			s.mu.Unlock()
			continue
		}
		watchCtx, cancel := context.WithCancel(ctx)
		missingSince := s.currentRound
		s.pending[d] = pendingSync{cancel: cancel, missingSince: missingSince}
		s.mu.Unlock()

		go s.watch(watchCtx, d, req.Target, missingSince)
	}
}

// cleanup advances current_round and immediately purges and cancels
// every pending entry that has fallen more than GCDepth rounds behind,
// rather than leaving that to the next per-digest retry tick (spec
// §4.5: "Cleanup(r) ... sweep the map and purge entries older than
// gc_depth").
func (s *Synchronizer) cleanup(round Round) {
	s.mu.Lock()
	if round > s.currentRound {
		s.currentRound = round
	}
	var expired []context.CancelFunc
	for d, entry := range s.pending {
		if s.currentRound-entry.missingSince > Round(s.params.GCDepth) {
			expired = append(expired, entry.cancel)
			delete(s.pending, d)
		}
	}
	s.mu.Unlock()

	for _, cancel := range expired {
		cancel()
	}
}

func (s *Synchronizer) expired(missingSince Round) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentRound <= missingSince {
		return false
	}
	return s.currentRound-missingSince > Round(s.params.GCDepth)
}

func (s *Synchronizer) clearPending(d Digest) {
	s.mu.Lock()
	delete(s.pending, d)
	s.mu.Unlock()
}

// watch owns the lifecycle of back-filling a single digest: it requests
// the batch from target, then every SyncRetryDelay fans a retry wave out
// to up to SyncRetryNodes not-yet-tried committee members at once
// (round-robin, excluding target), until the batch shows up in Store or
// the digest ages out past GCDepth. Once every candidate has been tried
// it keeps waiting without sending further requests. ctx is
// cancelled by Cleanup the instant this digest ages out, independent of
// the ticker (spec §4.5).
func (s *Synchronizer) watch(ctx context.Context, d Digest, target PublicKey, missingSince Round) {
	defer s.clearPending(d)

	if _, found, err := s.store.Read(ctx, d); err != nil {
		s.log.Errorf("synchronizer: read %s: %v", d, err)
	} else if found {
		return
	}

	arrivedCh := make(chan struct{}, 1)
	go func() {
		if _, err := s.store.NotifyRead(ctx, d); err == nil {
			arrivedCh <- struct{}{}
		}
	}()

	candidates := s.retryCandidates(target)
	tried := 0

	s.request(ctx, d, target)

	ticker := time.NewTicker(s.params.SyncRetryDelay)
	defer ticker.Stop()

	for {
		select {
		case <-arrivedCh:
			return
		case <-s.exitCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.expired(missingSince) {
				s.log.Debugf("synchronizer: abandoning %s, exceeded gc depth", d)
				return
			}
			if tried >= len(candidates) {
				continue
			}
			end := tried + s.params.SyncRetryNodes
			if end > len(candidates) {
				end = len(candidates)
			}
			wave := candidates[tried:end]
			tried = end
			for _, peer := range wave {
				s.request(ctx, d, peer)
			}
		}
	}
}

// retryCandidates returns committee members to retry against, in
// round-robin order starting just after target, excluding target itself.
func (s *Synchronizer) retryCandidates(target PublicKey) []PublicKey {
	others := s.committee.Others(s.self)
	if len(others) == 0 {
		return nil
	}
	start := 0
	for i, pk := range others {
		if pk == target {
			start = i + 1
			break
		}
	}
	ordered := make([]PublicKey, 0, len(others))
	for i := 0; i < len(others); i++ {
		pk := others[(start+i)%len(others)]
		if pk != target {
			ordered = append(ordered, pk)
		}
	}
	return ordered
}

func (s *Synchronizer) request(ctx context.Context, d Digest, peer PublicKey) {
	addr, ok := s.committee.MempoolAddress(peer)
	if !ok {
		return
	}
	msg := MempoolMessage{Kind: MessageBatchRequest, Missing: []Digest{d}, Requestor: s.self}
	data, err := EncodeMempoolMessage(msg)
	if err != nil {
		s.log.Errorf("synchronizer: encode batch request for %s: %v", d, err)
		return
	}
	if err := s.sender.Send(ctx, data, addr); err != nil {
		s.log.Debugf("synchronizer: request %s from %s: %v", d, addr, err)
	}
}
