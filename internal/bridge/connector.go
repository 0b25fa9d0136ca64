package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConnector queues facts on per-stream redis lists for a relayer
// on the destination side to drain.
type RedisConnector struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisConnector(rdb *redis.Client, log *zap.Logger) *RedisConnector {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisConnector{rdb: rdb, log: log}
}

func (c *RedisConnector) Publish(ctx context.Context, fact Fact) error {
	raw, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("marshal fact: %w", err)
	}
	key := FactStreamKey(fact.SrcChainID, fact.DstChainID, fact.Type)
	if err := c.rdb.RPush(ctx, key, string(raw)).Err(); err != nil {
		return fmt.Errorf("publish fact: %w", err)
	}
	c.log.Debug("fact published",
		zap.String("stream", key),
		zap.String("type", string(fact.Type)))
	return nil
}

// DirectConnector applies facts to a local applier with no queue in
// between. It stands in for the bridge on single-process deployments;
// only an instance wired to it may allow direct XLP registration.
type DirectConnector struct {
	applier Applier
	log     *zap.Logger
}

func NewDirectConnector(applier Applier, log *zap.Logger) *DirectConnector {
	if log == nil {
		log = zap.NewNop()
	}
	log.Warn("bridge connector disabled, facts apply in-process")
	return &DirectConnector{applier: applier, log: log}
}

func (c *DirectConnector) Publish(_ context.Context, fact Fact) error {
	return ApplyFact(c.applier, fact)
}
