package xlp

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/api"
	"github.com/xlplabs/crosspay/internal/auth"
	"github.com/xlplabs/crosspay/internal/clock"
	"github.com/xlplabs/crosspay/internal/paymaster"
	"github.com/xlplabs/crosspay/internal/stake"
	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/token"
	"github.com/xlplabs/crosspay/internal/voucher"
)

func init() { gin.SetMode(gin.TestMode) }

const (
	originChainID = uint64(1)
	destChainID   = uint64(2)

	unlockDelay   = int64(3600)
	disputeWindow = int64(3600)
)

var (
	pmAddrA   = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	pmAddrB   = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	treasury  = common.HexToAddress("0x00000000000000000000000000000000000000FE")
	recipient = common.HexToAddress("0x0000000000000000000000000000000000000C02")
	tokenX    = common.HexToAddress("0x0000000000000000000000000000000000000D01")
	tokenY    = common.HexToAddress("0x0000000000000000000000000000000000000D02")
	xlpL2     = common.HexToAddress("0x0000000000000000000000000000000000000E02")
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// engineFixture is one chain instance served over a real HTTP listener.
type engineFixture struct {
	pm   *paymaster.Paymaster
	bank *token.Bank
	url  string
}

func newEngineFixture(t *testing.T, clk *clock.Manual, chainID uint64, addr, oracle common.Address) *engineFixture {
	t.Helper()
	bank := token.NewBank()
	stakes := stake.NewManager(stake.Params{
		MinStakePerChain: big.NewInt(100),
		MaxChainsPerXlp:  4,
		UnstakeDelay:     86_400,
	}, clk, addr)
	pm, err := paymaster.New(paymaster.Params{
		ChainID:                    chainID,
		Address:                    addr,
		Treasury:                   treasury,
		FeePolicy:                  paymaster.FeePolicyTreasury,
		UserCancellationDelay:      300,
		VoucherUnlockDelay:         unlockDelay,
		DisputeWindow:              disputeWindow,
		AllowDirectXlpRegistration: true,
	}, clk, bank, stakes, paymaster.OutcomeVerifier{Oracle: oracle}, zap.NewNop())
	if err != nil {
		t.Fatalf("paymaster: %v", err)
	}

	r := gin.New()
	api.NewHandler(pm, nil, zap.NewNop()).Register(r.Group("/v1"), auth.NewVerifier(newTestRedis(t), zap.NewNop()))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &engineFixture{pm: pm, bank: bank, url: srv.URL}
}

type workerEnv struct {
	clk       *clock.Manual
	origin    *engineFixture
	dest      *engineFixture
	rdb       *redis.Client
	worker    *Worker
	xlpKey    *ecdsa.PrivateKey
	xlp       common.Address
	sender    common.Address
	oracleKey *ecdsa.PrivateKey
}

func newWorkerEnv(t *testing.T, params Params) *workerEnv {
	t.Helper()
	clk := clock.NewManual(1_700_000_000)
	xlpKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	senderKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	oracleKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	xlp := crypto.PubkeyToAddress(xlpKey.PublicKey)
	oracle := crypto.PubkeyToAddress(oracleKey.PublicKey)

	e := &workerEnv{
		clk:       clk,
		origin:    newEngineFixture(t, clk, originChainID, pmAddrA, oracle),
		dest:      newEngineFixture(t, clk, destChainID, pmAddrB, oracle),
		rdb:       newTestRedis(t),
		xlpKey:    xlpKey,
		xlp:       xlp,
		sender:    crypto.PubkeyToAddress(senderKey.PublicKey),
		oracleKey: oracleKey,
	}

	for _, f := range []*engineFixture{e.origin, e.dest} {
		if err := f.pm.RegisterXlpDirect(xlp, xlpL2); err != nil {
			t.Fatalf("register xlp: %v", err)
		}
	}
	e.origin.bank.Mint(e.sender, tokenX, big.NewInt(10_000))
	e.origin.bank.Mint(xlp, common.Address{}, big.NewInt(1_000))
	if err := e.origin.pm.Stake(xlp, destChainID, big.NewInt(200)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	e.dest.bank.Mint(xlp, tokenY, big.NewInt(10_000))
	e.dest.bank.Mint(xlp, common.Address{}, big.NewInt(1_000))
	if err := e.dest.pm.DepositToXlp(xlp, xlp, swap.Asset{Token: tokenY, Amount: big.NewInt(5_000)}); err != nil {
		t.Fatalf("dest deposit: %v", err)
	}
	if err := e.dest.pm.DepositToXlp(xlp, xlp, swap.Asset{Token: common.Address{}, Amount: big.NewInt(500)}); err != nil {
		t.Fatalf("dest native deposit: %v", err)
	}

	params.Key = xlpKey
	if params.OriginChainID == 0 {
		params.OriginChainID = originChainID
	}
	if params.DestChainID == 0 {
		params.DestChainID = destChainID
	}
	w, err := NewWorker(params,
		NewClient(e.origin.url, xlpKey),
		NewClient(e.dest.url, xlpKey),
		e.rdb, zap.NewNop())
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	e.worker = w
	return e
}

// newRequest swaps 1_000 tokenX for 900 tokenY at a flat 1% fee.
func (e *workerEnv) newRequest(nonce uint64) swap.Request {
	return swap.Request{
		Origination: swap.OriginTerms{
			ChainID:   originChainID,
			Paymaster: pmAddrA,
			Sender:    e.sender,
			Assets:    []swap.Asset{{Token: tokenX, Amount: big.NewInt(1_000)}},
			Fee:       swap.FeeRule{StartFeeBps: 100, MaxFeeBps: 100},
			Nonce:     nonce,
		},
		Destination: swap.DestTerms{
			ChainID:       destChainID,
			Paymaster:     pmAddrB,
			Recipient:     recipient,
			Assets:        []swap.Asset{{Token: tokenY, Amount: big.NewInt(900)}},
			MaxUserOpCost: big.NewInt(50),
			ExpiresAt:     e.clk.Now() + 7*86_400,
		},
	}
}

func (e *workerEnv) lock(t *testing.T, req swap.Request) common.Hash {
	t.Helper()
	id, err := e.origin.pm.LockUserDeposit(e.sender, req)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	return id
}

func (e *workerEnv) announce(t *testing.T, req swap.Request) []byte {
	t.Helper()
	raw, err := json.Marshal(Announcement{
		ID:          req.ID(),
		Request:     req,
		AnnouncedAt: time.Now().Unix(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func (e *workerEnv) stage(t *testing.T, id common.Hash) Stage {
	t.Helper()
	p, err := GetProgress(context.Background(), e.rdb, id)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if p == nil {
		t.Fatalf("no progress record for %s", id.Hex())
	}
	return p.Stage
}

// ── Serving ─────────────────────────────────────────────────────────────────

func TestWorker_ServesSwap(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	req := e.newRequest(1)
	id := e.lock(t, req)

	e.worker.handleAnnouncement(ctx, e.announce(t, req))

	if got := e.origin.pm.GetAtomicSwap(id).Status; got != swap.StatusVoucherIssued {
		t.Fatalf("origin status = %v, want VOUCHER_ISSUED", got)
	}
	if got := e.dest.pm.GetIncomingSwap(id).Status; got != swap.IncomingClaimed {
		t.Fatalf("incoming status = %v, want CLAIMED", got)
	}
	if got := e.dest.bank.BalanceOf(recipient, tokenY); got.Cmp(big.NewInt(900)) != 0 {
		t.Errorf("recipient = %s, want 900", got)
	}
	if got := e.stage(t, id); got != StageRedeemed {
		t.Errorf("stage = %s, want redeemed", got)
	}

	// Settlement: blocked while the dispute window runs, through afterwards.
	e.worker.sweepOnce(ctx)
	if got := e.stage(t, id); got != StageRedeemed {
		t.Errorf("stage after early sweep = %s, want redeemed", got)
	}

	e.clk.Advance(unlockDelay + 1)
	e.worker.sweepOnce(ctx)
	if got := e.stage(t, id); got != StageSettled {
		t.Errorf("stage = %s, want settled", got)
	}
	if got := e.origin.pm.GetAtomicSwap(id).Status; got != swap.StatusSuccessful {
		t.Errorf("origin status = %v, want SUCCESSFUL", got)
	}
	if got := e.origin.pm.TokenBalanceOf(e.xlp, tokenX); got.Cmp(big.NewInt(990)) != 0 {
		t.Errorf("xlp internal balance = %s, want 990", got)
	}
}

func TestWorker_DuplicateAnnouncementIgnored(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	req := e.newRequest(1)
	e.lock(t, req)
	raw := e.announce(t, req)

	e.worker.handleAnnouncement(ctx, raw)
	e.worker.handleAnnouncement(ctx, raw)

	if got := e.stage(t, req.ID()); got != StageRedeemed {
		t.Errorf("stage = %s, want redeemed", got)
	}
}

// ── Filtering ───────────────────────────────────────────────────────────────

func TestWorker_Filters(t *testing.T) {
	e := newWorkerEnv(t, Params{
		MaxPrincipal:    big.NewInt(5_000),
		MinFeeBps:       50,
		UnlockDelay:     unlockDelay,
		SupportedTokens: []common.Address{tokenX, tokenY},
	})
	ctx := context.Background()

	wrongChain := e.newRequest(1)
	wrongChain.Destination.ChainID = 99

	excluded := e.newRequest(2)
	excluded.Origination.AllowedXlps = []common.Address{recipient}

	tooBig := e.newRequest(3)
	tooBig.Origination.Assets = []swap.Asset{{Token: tokenX, Amount: big.NewInt(6_000)}}

	// 10 bps at lock, 40 bps cap: still under the 50 bps floor at unlock.
	cheap := e.newRequest(4)
	cheap.Origination.Fee = swap.FeeRule{StartFeeBps: 10, MaxFeeBps: 40, FeeIncreaseBpsPerSec: 1}

	alienToken := e.newRequest(5)
	alienToken.Origination.Assets = []swap.Asset{{
		Token:  common.HexToAddress("0x0000000000000000000000000000000000000D99"),
		Amount: big.NewInt(1_000),
	}}

	for name, req := range map[string]swap.Request{
		"wrong chain": wrongChain,
		"excluded":    excluded,
		"too big":     tooBig,
		"cheap":       cheap,
		"alien token": alienToken,
	} {
		e.worker.handleAnnouncement(ctx, e.announce(t, req))
		if p, err := GetProgress(ctx, e.rdb, req.ID()); err != nil || p != nil {
			t.Errorf("%s: expected no progress record, got %+v (err %v)", name, p, err)
		}
	}

	// A conforming swap still gets served.
	ok := e.newRequest(6)
	id := e.lock(t, ok)
	e.worker.handleAnnouncement(ctx, e.announce(t, ok))
	if got := e.stage(t, id); got != StageRedeemed {
		t.Errorf("conforming swap stage = %s, want redeemed", got)
	}
}

func TestWorker_RejectsIDMismatch(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	req := e.newRequest(1)

	raw, err := json.Marshal(Announcement{ID: common.HexToHash("0xbad"), Request: req})
	if err != nil {
		t.Fatal(err)
	}
	e.worker.handleAnnouncement(ctx, raw)
	if p, _ := GetProgress(ctx, e.rdb, req.ID()); p != nil {
		t.Errorf("expected no progress record, got %+v", p)
	}
}

// ── Sweep reconciliation ────────────────────────────────────────────────────

func TestWorker_SweepResumesFromSeen(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	req := e.newRequest(1)
	id := e.lock(t, req)

	// Crash before issuing: only the seen record survives.
	if err := SaveProgress(ctx, e.rdb, Progress{
		RequestID: id,
		Stage:     StageSeen,
		Request:   req,
		UpdatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}

	e.worker.sweepOnce(ctx)

	if got := e.origin.pm.GetAtomicSwap(id).Status; got != swap.StatusVoucherIssued {
		t.Fatalf("origin status = %v, want VOUCHER_ISSUED", got)
	}
	if got := e.dest.pm.GetIncomingSwap(id).Status; got != swap.IncomingClaimed {
		t.Fatalf("incoming status = %v, want CLAIMED", got)
	}
	if got := e.stage(t, id); got != StageRedeemed {
		t.Errorf("stage = %s, want redeemed", got)
	}
}

func TestWorker_SweepRedeemsStalledLeg(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	req := e.newRequest(1)
	id := e.lock(t, req)

	// Issued on the origin side but the destination call never happened.
	v, err := e.worker.signVoucher(req)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.origin.pm.IssueVouchers([]voucher.Submission{{Request: req, Voucher: v}}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := SaveProgress(ctx, e.rdb, Progress{
		RequestID: id, Stage: StageIssued, Request: req, UpdatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}

	e.worker.sweepOnce(ctx)

	if got := e.dest.pm.GetIncomingSwap(id).Status; got != swap.IncomingClaimed {
		t.Fatalf("incoming status = %v, want CLAIMED", got)
	}
	if got := e.stage(t, id); got != StageRedeemed {
		t.Errorf("stage = %s, want redeemed", got)
	}
}

func TestWorker_SweepClosesLostSwap(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	req := e.newRequest(1)
	id := e.lock(t, req)

	// A competing XLP wins the issuance race.
	rivalKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	rival := crypto.PubkeyToAddress(rivalKey.PublicKey)
	if err := e.origin.pm.RegisterXlpDirect(rival, xlpL2); err != nil {
		t.Fatal(err)
	}
	e.origin.bank.Mint(rival, common.Address{}, big.NewInt(500))
	if err := e.origin.pm.Stake(rival, destChainID, big.NewInt(200)); err != nil {
		t.Fatal(err)
	}
	rv := voucher.Voucher{
		RequestID:   id,
		Xlp:         rival,
		Dest:        req.Destination,
		ExpiresAt:   e.clk.Now() + 7_200,
		VoucherType: voucher.VoucherTypeStandard,
	}
	if err := voucher.Sign(&rv, rivalKey, new(big.Int).SetUint64(destChainID), pmAddrB); err != nil {
		t.Fatal(err)
	}
	if err := e.origin.pm.IssueVouchers([]voucher.Submission{{Request: req, Voucher: rv}}); err != nil {
		t.Fatalf("rival issue: %v", err)
	}

	if err := SaveProgress(ctx, e.rdb, Progress{
		RequestID: id, Stage: StageSeen, Request: req, UpdatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}
	e.worker.sweepOnce(ctx)

	if got := e.stage(t, id); got != StageClosed {
		t.Errorf("stage = %s, want closed", got)
	}
	// The destination leg must not have been paid by this worker.
	if got := e.dest.pm.GetIncomingSwap(id).Status; got != swap.IncomingNone {
		t.Errorf("incoming status = %v, want NONE", got)
	}
}

func TestWorker_SweepClosesNeverLocked(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	req := e.newRequest(1)

	if err := SaveProgress(ctx, e.rdb, Progress{
		RequestID: req.ID(), Stage: StageSeen, Request: req, UpdatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatal(err)
	}
	e.worker.sweepOnce(ctx)

	if got := e.stage(t, req.ID()); got != StageClosed {
		t.Errorf("stage = %s, want closed", got)
	}
}

// ── Client reads ────────────────────────────────────────────────────────────

func TestClient_MissingReads(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()
	unknown := common.HexToHash("0x99")

	if v, err := e.worker.origin.Swap(ctx, unknown); err != nil || v != nil {
		t.Errorf("Swap = %+v, %v; want nil, nil", v, err)
	}
	if v, err := e.worker.dest.Incoming(ctx, unknown); err != nil || v != nil {
		t.Errorf("Incoming = %+v, %v; want nil, nil", v, err)
	}
	if info, err := e.worker.origin.StakeInfo(ctx, e.xlp, 99); err != nil || info != nil {
		t.Errorf("StakeInfo = %+v, %v; want nil, nil", info, err)
	}
}

func TestClient_StakeRoundTrip(t *testing.T) {
	e := newWorkerEnv(t, Params{})
	ctx := context.Background()

	if err := e.worker.origin.Stake(ctx, destChainID, big.NewInt(300)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	info, err := e.worker.origin.StakeInfo(ctx, e.xlp, destChainID)
	if err != nil || info == nil {
		t.Fatalf("stake info: %+v, %v", info, err)
	}
	if info.Active.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("active = %s, want 500", info.Active)
	}

	xlps, count, err := e.worker.origin.Xlps(ctx, 0, 10)
	if err != nil {
		t.Fatalf("xlps: %v", err)
	}
	if count != 1 || len(xlps) != 1 || xlps[0].L1Address != e.xlp {
		t.Errorf("xlps = %+v count=%d", xlps, count)
	}
}
