package mempool

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/astra-chain/mempool/digest"
	"github.com/astra-chain/mempool/logging"
)

// Logger is the leveled logger every task in the pipeline accepts.
type Logger = logging.Logger

// Transaction is an opaque client-submitted byte string. Its format and
// signature validity are the client's responsibility (spec §1 non-goal);
// the mempool never inspects its contents.
type Transaction []byte

// Batch is an ordered group of transactions sealed by BatchMaker. Order
// within a batch is preserved from arrival order.
type Batch struct {
	Transactions []Transaction
}

// Size is the total byte size of every transaction in the batch, the
// quantity BatchMaker compares against Parameters.BatchSize.
func (b Batch) Size() int {
	n := 0
	for _, tx := range b.Transactions {
		n += len(tx)
	}
	return n
}

// SerializedBatch is the canonical wire form of a Batch: produced once by
// BatchMaker and reused unchanged for broadcast, storage, and digest
// computation.
type SerializedBatch []byte

// Digest re-exports digest.Digest so callers of this package do not need
// a second import for the type most of its exported signatures use.
type Digest = digest.Digest

// EncodeBatch serializes b canonically. BatchMaker calls this exactly
// once per sealed batch and reuses the result for broadcast, storage,
// and digest computation (spec §4.1).
func EncodeBatch(b Batch) (SerializedBatch, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("mempool: encode batch: %w", err)
	}
	return SerializedBatch(buf.Bytes()), nil
}

// DecodeBatch parses data produced by EncodeBatch.
func DecodeBatch(data SerializedBatch) (Batch, error) {
	var b Batch
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return Batch{}, fmt.Errorf("mempool: decode batch: %w", err)
	}
	return b, nil
}

// messageKind tags which variant of MempoolMessage or
// ConsensusMempoolMessage a given value holds.
type messageKind uint8

const (
	kindBatch messageKind = iota
	kindBatchRequest
)

const (
	kindSynchronize messageKind = iota
	kindCleanup
)

// MempoolMessage is the peer-to-peer wire type: a tagged union of Batch
// and BatchRequest (spec §3).
type MempoolMessage struct {
	Kind Kind

	// Valid when Kind == MessageBatch. RawBatch carries the exact
	// SerializedBatch bytes EncodeBatch produced; it is never re-encoded
	// on receipt, so every recipient forwards the identical bytes to its
	// Processor and therefore computes the identical digest the sender
	// would (spec §4.6, §8 round-trip law).
	RawBatch SerializedBatch

	// Valid when Kind == MessageBatchRequest.
	Missing   []Digest
	Requestor PublicKey
}

// Kind distinguishes MempoolMessage variants. It is exported so callers
// constructing messages by hand (tests, other transports) can name the
// variant without reaching into an unexported type.
type Kind = messageKind

const (
	MessageBatch        Kind = kindBatch
	MessageBatchRequest Kind = kindBatchRequest
)

// EncodeMempoolMessage serializes m canonically. Encoding the same value
// twice yields byte-identical output, which is what lets the mempool
// receive handler forward the original bytes on to Processor while still
// having inspected the message's variant (spec §8 round-trip law).
func EncodeMempoolMessage(m MempoolMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("mempool: encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMempoolMessage parses data produced by EncodeMempoolMessage.
func DecodeMempoolMessage(data []byte) (MempoolMessage, error) {
	var m MempoolMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return MempoolMessage{}, fmt.Errorf("mempool: decode message: %w", err)
	}
	return m, nil
}

// ConsensusKind distinguishes ConsensusMempoolMessage variants.
type ConsensusKind = messageKind

const (
	ConsensusSynchronize ConsensusKind = kindSynchronize
	ConsensusCleanup     ConsensusKind = kindCleanup
)

// ConsensusMempoolMessage is the consensus -> mempool control channel
// type (spec §3): Synchronize asks the mempool to chase down missing
// digests, Cleanup advances the round watermark used to bound that work.
type ConsensusMempoolMessage struct {
	Kind ConsensusKind

	// Valid when Kind == ConsensusSynchronize.
	Targets []Digest
	Target  PublicKey

	// Valid when Kind == ConsensusCleanup.
	Round Round
}
