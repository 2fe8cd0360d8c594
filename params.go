package mempool

import "time"

// Round is a monotonic consensus round number, advanced only by Cleanup
// commands from consensus.
type Round uint64

// DefaultChannelCapacity is the default bound on every internal queue in
// the pipeline, named CHANNEL_CAPACITY in the original mempool design.
const DefaultChannelCapacity = 1000

// Parameters are the run's tunable knobs (spec §6). They are read-only
// after construction and shared by every task.
type Parameters struct {
	// BatchSize is the byte-size threshold at which BatchMaker seals a
	// batch.
	BatchSize int
	// MaxBatchDelay is how long BatchMaker waits, after its buffer first
	// becomes non-empty, before sealing whatever it has.
	MaxBatchDelay time.Duration
	// GCDepth bounds how many rounds behind current_round a Synchronizer
	// entry may fall before being abandoned.
	GCDepth uint64
	// SyncRetryDelay is the cadence at which Synchronizer retries an
	// outstanding Synchronize target against additional peers.
	SyncRetryDelay time.Duration
	// SyncRetryNodes is how many additional peers each retry wave asks.
	SyncRetryNodes int
	// ChannelCapacity bounds every internal queue; defaults to
	// DefaultChannelCapacity when zero.
	ChannelCapacity int
}

// channelCapacity returns p.ChannelCapacity, or DefaultChannelCapacity if
// unset.
func (p Parameters) channelCapacity() int {
	if p.ChannelCapacity <= 0 {
		return DefaultChannelCapacity
	}
	return p.ChannelCapacity
}

// LogFields logs every tunable at info level, mirroring the original
// design's parameters.log() on startup: a diffable record of the
// configuration a given run used, for comparing performance across runs.
func (p Parameters) LogFields(log Logger) {
	log.Infof("parameter batch_size %d", p.BatchSize)
	log.Infof("parameter max_batch_delay %s", p.MaxBatchDelay)
	log.Infof("parameter gc_depth %d", p.GCDepth)
	log.Infof("parameter sync_retry_delay %s", p.SyncRetryDelay)
	log.Infof("parameter sync_retry_nodes %d", p.SyncRetryNodes)
	log.Infof("parameter channel_capacity %d", p.channelCapacity())
}
