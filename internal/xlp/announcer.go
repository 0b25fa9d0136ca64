// Package xlp is the liquidity-provider side of the protocol: the
// announcement feed locked swaps are published to, the signed HTTP client
// for talking to paymaster instances, and the worker that serves swaps
// end to end (issue, redeem, settle).
package xlp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/swap"
)

// AnnounceKeyFmt is the per-origin-chain list new locked swaps are
// pushed to. Workers consume it with BLPOP.
const AnnounceKeyFmt = "swaps:announce:%d"

func AnnounceKey(chainID uint64) string {
	return fmt.Sprintf(AnnounceKeyFmt, chainID)
}

// Announcement is one locked swap offered to the XLP network.
type Announcement struct {
	ID          common.Hash  `json:"id"`
	Request     swap.Request `json:"request"`
	AnnouncedAt int64        `json:"announced_at"`
}

// Announcer publishes locked swaps onto the announcement feed. It
// satisfies the API layer's SwapHooks.
type Announcer struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewAnnouncer(rdb *redis.Client, log *zap.Logger) *Announcer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Announcer{rdb: rdb, log: log}
}

// OnLocked runs after a successful lock. Failures are logged, not
// returned: the lock itself has already committed and announcements are
// best-effort (workers also discover swaps through the status reads).
func (a *Announcer) OnLocked(ctx context.Context, id common.Hash, req swap.Request) {
	ann := Announcement{
		ID:          id,
		Request:     req,
		AnnouncedAt: time.Now().Unix(),
	}
	raw, err := json.Marshal(ann)
	if err != nil {
		a.log.Error("marshal announcement", zap.String("id", id.Hex()), zap.Error(err))
		return
	}
	key := AnnounceKey(req.Origination.ChainID)
	if err := a.rdb.RPush(ctx, key, raw).Err(); err != nil {
		a.log.Error("publish announcement",
			zap.String("id", id.Hex()),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	a.log.Debug("swap announced", zap.String("id", id.Hex()), zap.String("key", key))
}
