package xlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/xlplabs/crosspay/internal/swap"
)

const progressKeyPrefix = "xlp:swap:"

// Stage is how far the worker has taken one swap. Stages only move
// forward; the settlement sweep reconciles them against engine state.
type Stage string

const (
	StageSeen     Stage = "seen"     // announcement accepted, nothing submitted yet
	StageIssued   Stage = "issued"   // voucher accepted by the origin instance
	StageRedeemed Stage = "redeemed" // destination leg delivered
	StageSettled  Stage = "settled"  // principal withdrawn on the origin chain
	StageClosed   Stage = "closed"   // lost, cancelled or slashed; no further action
)

// Progress is the worker's durable record for one swap. The full request
// is retained because settlement must re-supply it to the engine.
type Progress struct {
	RequestID common.Hash
	Stage     Stage
	Request   swap.Request
	UpdatedAt int64
}

func progressKey(id common.Hash) string {
	return progressKeyPrefix + id.Hex()
}

func SaveProgress(ctx context.Context, rdb *redis.Client, p Progress) error {
	raw, err := json.Marshal(p.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return rdb.HSet(ctx, progressKey(p.RequestID),
		"request_id", p.RequestID.Hex(),
		"stage", string(p.Stage),
		"request", raw,
		"updated_at", p.UpdatedAt,
	).Err()
}

func GetProgress(ctx context.Context, rdb *redis.Client, id common.Hash) (*Progress, error) {
	vals, err := rdb.HGetAll(ctx, progressKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return progressFromMap(vals)
}

func UpdateStage(ctx context.Context, rdb *redis.Client, id common.Hash, stage Stage, now int64) error {
	return rdb.HSet(ctx, progressKey(id),
		"stage", string(stage),
		"updated_at", now,
	).Err()
}

// ScanAllProgress returns every tracked swap. Corrupt records are
// skipped so one bad entry cannot stall the sweep.
func ScanAllProgress(ctx context.Context, rdb *redis.Client) ([]Progress, error) {
	var out []Progress
	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, progressKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		for _, key := range keys {
			vals, err := rdb.HGetAll(ctx, key).Result()
			if err != nil || len(vals) == 0 {
				continue
			}
			p, err := progressFromMap(vals)
			if err != nil {
				continue
			}
			out = append(out, *p)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}

func progressFromMap(m map[string]string) (*Progress, error) {
	var req swap.Request
	if err := json.Unmarshal([]byte(m["request"]), &req); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	updatedAt, _ := strconv.ParseInt(m["updated_at"], 10, 64)
	return &Progress{
		RequestID: common.HexToHash(m["request_id"]),
		Stage:     Stage(m["stage"]),
		Request:   req,
		UpdatedAt: updatedAt,
	}, nil
}
