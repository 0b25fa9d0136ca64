package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/swap"
)

// Relayer drains the fact streams addressed to one chain instance and
// applies them. Poisoned and permanently rejected facts land on the
// stream's DLQ; facts the local state cannot absorb yet go back to the
// head of their stream so per-stream order holds across the retry.
type Relayer struct {
	rdb     *redis.Client
	applier Applier
	streams []string
	log     *zap.Logger

	blpopTimeout time.Duration
	retryDelay   time.Duration
}

func NewRelayer(rdb *redis.Client, applier Applier, dstChainID uint64, srcChainIDs []uint64, log *zap.Logger) *Relayer {
	if log == nil {
		log = zap.NewNop()
	}
	streams := make([]string, 0, 2*len(srcChainIDs))
	for _, src := range srcChainIDs {
		for _, t := range []FactType{FactXlpRegistration, FactDisputeOutcome} {
			streams = append(streams, FactStreamKey(src, dstChainID, t))
		}
	}
	return &Relayer{
		rdb:          rdb,
		applier:      applier,
		streams:      streams,
		log:          log,
		blpopTimeout: time.Second,
		retryDelay:   5 * time.Second,
	}
}

// Run is the relay loop: BLPOP across all streams, apply, route failures.
func (r *Relayer) Run(ctx context.Context) {
	r.log.Info("bridge relayer started", zap.Strings("streams", r.streams))

	for {
		if ctx.Err() != nil {
			r.log.Info("bridge relayer stopped")
			return
		}

		results, err := r.rdb.BLPop(ctx, r.blpopTimeout, r.streams...).Result()
		if err != nil {
			if err == redis.Nil {
				// Timeout: no facts, loop back
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.log.Error("bridge relayer: BLPOP", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// results[0] = stream key, results[1] = raw fact
		if retry := r.handleOne(ctx, results[0], results[1]); retry {
			time.Sleep(r.retryDelay)
		}
	}
}

// handleOne applies one raw fact. A true return means the fact went back
// to its stream and the loop should back off before the next pop.
func (r *Relayer) handleOne(ctx context.Context, streamKey, raw string) bool {
	var fact Fact
	if err := json.Unmarshal([]byte(raw), &fact); err != nil {
		r.deadLetter(ctx, streamKey, raw, err)
		return false
	}

	err := ApplyFact(r.applier, fact)
	if err == nil {
		r.log.Info("fact applied",
			zap.String("stream", streamKey),
			zap.String("type", string(fact.Type)))
		return false
	}
	if errors.Is(err, swap.ErrInvalidStatus) {
		// The local swap has not reached the state this fact settles.
		// Head re-push keeps the stream ordered while we wait.
		r.rdb.LPush(ctx, streamKey, raw)
		r.log.Warn("fact not yet applicable",
			zap.String("stream", streamKey),
			zap.Error(err))
		return true
	}

	r.deadLetter(ctx, streamKey, raw, err)
	return false
}

func (r *Relayer) deadLetter(ctx context.Context, streamKey, raw string, cause error) {
	dlq := dlqKeyFor(streamKey)
	r.rdb.RPush(ctx, dlq, raw)
	r.log.Error("fact dead-lettered",
		zap.String("stream", streamKey),
		zap.String("dlq", dlq),
		zap.Error(cause))
}

func dlqKeyFor(streamKey string) string {
	return "bridge:dlq:" + strings.TrimPrefix(streamKey, "bridge:facts:")
}
