// Command mempool-node runs the mempool pipeline for one committee
// authority standalone, wired to a bbolt-backed Store and a TCP
// transport, for manual exercising and integration testing.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/astra-chain/mempool"
	"github.com/astra-chain/mempool/logging"
	"github.com/astra-chain/mempool/storage"
	"github.com/astra-chain/mempool/transport"
)

var (
	selfHex    = flag.String("self", "", "hex-encoded public key of this authority")
	listenAddr = flag.String("listen", "127.0.0.1:9000", "address to bind the mempool peer port on")
	txAddr     = flag.String("tx-listen", "127.0.0.1:9001", "address to bind the client transaction port on")
	dbPath     = flag.String("db", "mempool.db", "path to the bbolt database file")
	committee  = flag.String("committee", "", "comma-separated list of pubkey_hex=address=stake triples")
	batchSize  = flag.Int("batch-size", 500_000, "byte size at which a batch is sealed")
	batchDelay = flag.Duration("batch-delay", 100*time.Millisecond, "max delay before a non-empty batch is sealed")
	gcDepth    = flag.Uint64("gc-depth", 50, "rounds a missing digest may lag before being abandoned")
	retryDelay = flag.Duration("sync-retry-delay", time.Second, "delay between synchronizer retry waves")
	retryNodes = flag.Int("sync-retry-nodes", 3, "additional peers asked per synchronizer retry wave")
	useLogrus  = flag.Bool("logrus", false, "use logrus instead of the default stderr logger")
)

func main() {
	flag.Parse()

	log := newLogger()

	self, err := parsePublicKey(*selfHex)
	if err != nil {
		log.Fatalf("mempool-node: parse -self: %v", err)
	}

	auths, err := parseCommittee(*committee)
	if err != nil {
		log.Fatalf("mempool-node: parse -committee: %v", err)
	}
	comm := mempool.NewCommittee(auths)

	store, err := storage.OpenBoltStore(*dbPath)
	if err != nil {
		log.Fatalf("mempool-node: open store: %v", err)
	}
	defer store.Close()

	mempoolHandlers := transport.NewHandlerMap()
	txHandlers := transport.NewHandlerMap()

	validatorID := validatorIDFor(self)
	tr, err := transport.NewTCPTransport(*listenAddr, "", validatorID, mempoolHandlers, 5*time.Second, log)
	if err != nil {
		log.Fatalf("mempool-node: start transport: %v", err)
	}
	defer tr.Close()

	txTransport, err := transport.NewTCPTransport(*txAddr, "", validatorID, txHandlers, 5*time.Second, log)
	if err != nil {
		log.Fatalf("mempool-node: start tx transport: %v", err)
	}
	defer txTransport.Close()

	txConsensus := make(chan mempool.Digest, mempool.DefaultChannelCapacity)
	rxConsensus := make(chan mempool.SynchronizeRequest)
	rxCleanup := make(chan mempool.Round)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mp, err := mempool.Spawn(ctx, mempool.SpawnConfig{
		Self:      self,
		Committee: comm,
		Parameters: mempool.Parameters{
			BatchSize:       *batchSize,
			MaxBatchDelay:   *batchDelay,
			GCDepth:         *gcDepth,
			SyncRetryDelay:  *retryDelay,
			SyncRetryNodes:  *retryNodes,
			ChannelCapacity: mempool.DefaultChannelCapacity,
		},
		Store:           store,
		Sender:          tr,
		TxHandlers:      txHandlers,
		MempoolHandlers: mempoolHandlers,
		ValidatorID:     validatorID,
		TxConsensus:     txConsensus,
		RxConsensus:     rxConsensus,
		RxCleanup:       rxCleanup,
		Log:             log,
	})
	if err != nil {
		log.Fatalf("mempool-node: spawn: %v", err)
	}
	defer mp.Close()

	go func() {
		for d := range txConsensus {
			log.Infof("mempool-node: new batch digest %s", d)
		}
	}()

	log.Infof("mempool-node: mempool port on %s, client tx port on %s", tr.LocalAddress(), txTransport.LocalAddress())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Infof("mempool-node: shutting down")
}

func newLogger() mempool.Logger {
	if *useLogrus {
		return logging.NewLogrusLogger(nil)
	}
	return logging.NewDefaultLogger()
}

func parsePublicKey(s string) (mempool.PublicKey, error) {
	var pk mempool.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("expected %d bytes, got %d", len(pk), len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// validatorIDFor derives a stable numeric validator id from a public key
// for use as the transport HandlerMap key, since PublicKey itself is not
// the key type transport.HandlerMap indexes by.
func validatorIDFor(pk mempool.PublicKey) uint64 {
	var id uint64
	for i := 0; i < 8; i++ {
		id = id<<8 | uint64(pk[i])
	}
	return id
}

// parseCommittee parses a comma-separated list of
// pubkey_hex=address=stake triples into Authority values.
func parseCommittee(spec string) ([]mempool.Authority, error) {
	if spec == "" {
		return nil, fmt.Errorf("committee must not be empty")
	}
	var auths []mempool.Authority
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(entry, "=", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed committee entry %q", entry)
		}
		pk, err := parsePublicKey(parts[0])
		if err != nil {
			return nil, fmt.Errorf("committee entry %q: %w", entry, err)
		}
		var stake uint64
		if _, err := fmt.Sscanf(parts[2], "%d", &stake); err != nil {
			return nil, fmt.Errorf("committee entry %q: invalid stake: %w", entry, err)
		}
		auths = append(auths, mempool.Authority{PublicKey: pk, Address: parts[1], Stake: stake})
	}
	return auths, nil
}
