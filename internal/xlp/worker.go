package xlp

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/voucher"
)

// Params configure one worker identity.
type Params struct {
	Key           *ecdsa.PrivateKey // signs vouchers and HTTP requests
	OriginChainID uint64
	DestChainID   uint64
	VoucherTTL    int64    // seconds a signed voucher stays redeemable
	MaxPrincipal  *big.Int // optional: skip swaps above this origination amount

	// MinFeeBps skips swaps whose fee rate, projected to the moment the
	// principal unlocks, stays below this floor. UnlockDelay is the origin
	// instance's voucher unlock delay the projection assumes.
	MinFeeBps   uint32
	UnlockDelay int64

	// SupportedTokens restricts serving to swaps whose assets all use
	// these tokens, on both legs. Include the zero address to accept
	// native-asset legs. Empty means any token.
	SupportedTokens []common.Address
}

const defaultVoucherTTL = int64(7_200)

// Worker serves swaps for one (origin, destination) chain pair: consume
// announcements, issue a voucher on the origin instance, deliver on the
// destination instance, then settle once the dispute window closes. Every
// swap it touches is tracked in a redis progress record so a restarted
// worker resumes where it left off.
type Worker struct {
	params Params
	xlp    common.Address
	origin *Client
	dest   *Client
	rdb    *redis.Client
	log    *zap.Logger

	blpopTimeout time.Duration
	retryDelay   time.Duration
}

func NewWorker(params Params, origin, dest *Client, rdb *redis.Client, log *zap.Logger) (*Worker, error) {
	if params.Key == nil {
		return nil, fmt.Errorf("worker requires a signing key")
	}
	if params.OriginChainID == 0 || params.DestChainID == 0 {
		return nil, fmt.Errorf("worker requires origin and destination chain ids")
	}
	if origin == nil || dest == nil {
		return nil, fmt.Errorf("worker requires origin and destination clients")
	}
	if params.VoucherTTL <= 0 {
		params.VoucherTTL = defaultVoucherTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		params:       params,
		xlp:          crypto.PubkeyToAddress(params.Key.PublicKey),
		origin:       origin,
		dest:         dest,
		rdb:          rdb,
		log:          log,
		blpopTimeout: time.Second,
		retryDelay:   5 * time.Second,
	}, nil
}

// Xlp returns the worker's on-chain identity.
func (w *Worker) Xlp() common.Address { return w.xlp }

// Run consumes the announcement feed until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	key := AnnounceKey(w.params.OriginChainID)
	w.log.Info("xlp worker started",
		zap.String("xlp", w.xlp.Hex()),
		zap.String("feed", key))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("xlp worker stopped")
			return
		default:
		}

		results, err := w.rdb.BLPop(ctx, w.blpopTimeout, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				w.log.Info("xlp worker stopped")
				return
			}
			w.log.Error("consume announcement", zap.Error(err))
			time.Sleep(w.retryDelay)
			continue
		}
		w.handleAnnouncement(ctx, []byte(results[1]))
	}
}

// RunSettlement periodically reconciles tracked swaps against engine
// state: redeems stalled legs and withdraws matured principals.
func (w *Worker) RunSettlement(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	w.log.Info("settlement sweep started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("settlement sweep stopped")
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

// handleAnnouncement filters one announcement and, if the swap is worth
// serving, issues and redeems in line. Later stages are retried by the
// sweep, so failures here only log.
func (w *Worker) handleAnnouncement(ctx context.Context, raw []byte) {
	var ann Announcement
	if err := json.Unmarshal(raw, &ann); err != nil {
		w.log.Warn("malformed announcement", zap.Error(err))
		return
	}
	req := ann.Request
	id := req.ID()
	if ann.ID != id {
		w.log.Warn("announcement id mismatch",
			zap.String("announced", ann.ID.Hex()),
			zap.String("computed", id.Hex()))
		return
	}
	if !w.wants(req) {
		return
	}

	if p, err := w.progress(ctx, id); err != nil {
		w.log.Error("read progress", zap.String("id", id.Hex()), zap.Error(err))
		return
	} else if p != nil {
		w.log.Debug("already tracked", zap.String("id", id.Hex()), zap.String("stage", string(p.Stage)))
		return
	}

	if err := SaveProgress(ctx, w.rdb, Progress{
		RequestID: id,
		Stage:     StageSeen,
		Request:   req,
		UpdatedAt: time.Now().Unix(),
	}); err != nil {
		w.log.Error("save progress", zap.String("id", id.Hex()), zap.Error(err))
		return
	}
	w.serve(ctx, req)
}

// wants applies the worker's serving policy.
func (w *Worker) wants(req swap.Request) bool {
	if req.Origination.ChainID != w.params.OriginChainID ||
		req.Destination.ChainID != w.params.DestChainID {
		w.log.Debug("skip: wrong chain pair", zap.String("id", req.ID().Hex()))
		return false
	}
	if len(req.Origination.AllowedXlps) > 0 && !contains(req.Origination.AllowedXlps, w.xlp) {
		w.log.Debug("skip: not in allowed set", zap.String("id", req.ID().Hex()))
		return false
	}
	if w.params.MaxPrincipal != nil {
		for _, a := range req.Origination.Assets {
			if a.Amount != nil && a.Amount.Cmp(w.params.MaxPrincipal) > 0 {
				w.log.Debug("skip: principal above limit", zap.String("id", req.ID().Hex()))
				return false
			}
		}
	}
	if w.params.MinFeeBps > 0 && req.Origination.Fee.FeeBps(w.params.UnlockDelay) < w.params.MinFeeBps {
		w.log.Debug("skip: fee below minimum", zap.String("id", req.ID().Hex()))
		return false
	}
	if len(w.params.SupportedTokens) > 0 {
		for _, assets := range [][]swap.Asset{req.Origination.Assets, req.Destination.Assets} {
			for _, a := range assets {
				if !contains(w.params.SupportedTokens, a.Token) {
					w.log.Debug("skip: unsupported token",
						zap.String("id", req.ID().Hex()),
						zap.String("token", a.Token.Hex()))
					return false
				}
			}
		}
	}
	return true
}

// serve runs the happy path for a swap at StageSeen: sign, issue, redeem.
func (w *Worker) serve(ctx context.Context, req swap.Request) {
	id := req.ID()
	v, err := w.signVoucher(req)
	if err != nil {
		w.log.Error("sign voucher", zap.String("id", id.Hex()), zap.Error(err))
		return
	}
	if err := w.origin.IssueVouchers(ctx, []voucher.Submission{{Request: req, Voucher: v}}); err != nil {
		w.log.Warn("issue voucher", zap.String("id", id.Hex()), zap.Error(err))
		return
	}
	w.setStage(ctx, id, StageIssued)
	w.log.Info("voucher issued", zap.String("id", id.Hex()))

	if err := w.dest.Redeem(ctx, &v); err != nil {
		w.log.Warn("redeem voucher", zap.String("id", id.Hex()), zap.Error(err))
		return
	}
	w.setStage(ctx, id, StageRedeemed)
	w.log.Info("voucher redeemed", zap.String("id", id.Hex()))
}

// sweepOnce advances every tracked, unfinished swap one step.
func (w *Worker) sweepOnce(ctx context.Context) {
	entries, err := ScanAllProgress(ctx, w.rdb)
	if err != nil {
		w.log.Error("sweep: scan progress", zap.Error(err))
		return
	}
	for _, p := range entries {
		if p.Stage == StageSettled || p.Stage == StageClosed {
			continue
		}
		w.advance(ctx, p)
	}
}

// advance reconciles one swap against the origin instance's view and
// takes the next step. The engine status is authoritative; the local
// stage only records what this worker has already done.
func (w *Worker) advance(ctx context.Context, p Progress) {
	id := p.RequestID
	view, err := w.origin.Swap(ctx, id)
	if err != nil {
		w.log.Warn("sweep: read swap", zap.String("id", id.Hex()), zap.Error(err))
		return
	}
	if view == nil {
		// Announced but never locked. Nothing to serve.
		w.setStage(ctx, id, StageClosed)
		return
	}

	switch view.Status {
	case swap.StatusNew.String():
		if p.Stage == StageSeen {
			w.serve(ctx, p.Request)
		}
	case swap.StatusVoucherIssued.String():
		if view.IssuerL1Xlp != w.xlp {
			w.log.Info("sweep: lost to another xlp", zap.String("id", id.Hex()))
			w.setStage(ctx, id, StageClosed)
			return
		}
		inc, err := w.dest.Incoming(ctx, id)
		if err != nil {
			w.log.Warn("sweep: read incoming", zap.String("id", id.Hex()), zap.Error(err))
			return
		}
		if inc == nil {
			// Origin leg done, destination leg missing: redeem with a
			// fresh voucher over the same terms.
			v, err := w.signVoucher(p.Request)
			if err != nil {
				w.log.Error("sweep: sign voucher", zap.String("id", id.Hex()), zap.Error(err))
				return
			}
			if err := w.dest.Redeem(ctx, &v); err != nil {
				w.log.Warn("sweep: redeem", zap.String("id", id.Hex()), zap.Error(err))
				return
			}
			w.log.Info("voucher redeemed", zap.String("id", id.Hex()))
		}
		w.setStage(ctx, id, StageRedeemed)
		if err := w.origin.Withdraw(ctx, []swap.Request{p.Request}); err != nil {
			// Usually the unlock delay or dispute window still running.
			w.log.Debug("sweep: not withdrawable yet", zap.String("id", id.Hex()), zap.Error(err))
			return
		}
		w.setStage(ctx, id, StageSettled)
		w.log.Info("swap settled", zap.String("id", id.Hex()))
	case swap.StatusSuccessful.String():
		w.setStage(ctx, id, StageSettled)
	case swap.StatusCancelled.String(), swap.StatusSlashed.String():
		w.log.Info("sweep: swap closed", zap.String("id", id.Hex()), zap.String("status", view.Status))
		w.setStage(ctx, id, StageClosed)
	case swap.StatusDisputed.String():
		// Outcome arrives from the oracle or over the bridge.
	}
}

func (w *Worker) signVoucher(req swap.Request) (voucher.Voucher, error) {
	v := voucher.Voucher{
		RequestID:   req.ID(),
		Xlp:         w.xlp,
		Dest:        req.Destination,
		ExpiresAt:   time.Now().Unix() + w.params.VoucherTTL,
		VoucherType: voucher.VoucherTypeStandard,
	}
	err := voucher.Sign(&v, w.params.Key,
		new(big.Int).SetUint64(req.Destination.ChainID), req.Destination.Paymaster)
	return v, err
}

func (w *Worker) progress(ctx context.Context, id common.Hash) (*Progress, error) {
	return GetProgress(ctx, w.rdb, id)
}

func (w *Worker) setStage(ctx context.Context, id common.Hash, stage Stage) {
	if err := UpdateStage(ctx, w.rdb, id, stage, time.Now().Unix()); err != nil {
		w.log.Error("update stage",
			zap.String("id", id.Hex()),
			zap.String("stage", string(stage)),
			zap.Error(err))
	}
}

func contains(set []common.Address, addr common.Address) bool {
	for _, a := range set {
		if a == addr {
			return true
		}
	}
	return false
}
