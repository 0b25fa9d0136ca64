package paymaster

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/clock"
	"github.com/xlplabs/crosspay/internal/stake"
	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/token"
	"github.com/xlplabs/crosspay/internal/voucher"
)

const (
	originChainID = uint64(1)
	destChainID   = uint64(2)

	cancelDelay   = int64(300)
	unlockDelay   = int64(3600)
	disputeWindow = int64(3600)
)

var (
	pmAddrA   = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	pmAddrB   = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	treasury  = common.HexToAddress("0x00000000000000000000000000000000000000FE")
	sender    = common.HexToAddress("0x0000000000000000000000000000000000000C01")
	recipient = common.HexToAddress("0x0000000000000000000000000000000000000C02")
	tokenX    = common.HexToAddress("0x0000000000000000000000000000000000000D01")
	tokenY    = common.HexToAddress("0x0000000000000000000000000000000000000D02")
	xlpL2     = common.HexToAddress("0x0000000000000000000000000000000000000E02")
	native    = common.Address{}
)

type instance struct {
	pm     *Paymaster
	bank   *token.Bank
	stakes *stake.Manager
}

type env struct {
	clk       *clock.Manual
	origin    *instance
	dest      *instance
	xlpKey    *ecdsa.PrivateKey
	xlp       common.Address
	oracleKey *ecdsa.PrivateKey
}

func newInstance(t *testing.T, clk *clock.Manual, chainID uint64, addr, oracle common.Address, policy FeePolicy) *instance {
	t.Helper()
	bank := token.NewBank()
	stakes := stake.NewManager(stake.Params{
		MinStakePerChain: big.NewInt(100),
		MaxChainsPerXlp:  4,
		UnstakeDelay:     86_400,
	}, clk, addr)
	pm, err := New(Params{
		ChainID:                    chainID,
		Address:                    addr,
		Treasury:                   treasury,
		FeePolicy:                  policy,
		UserCancellationDelay:      cancelDelay,
		VoucherUnlockDelay:         unlockDelay,
		DisputeWindow:              disputeWindow,
		AllowDirectXlpRegistration: true,
	}, clk, bank, stakes, OutcomeVerifier{Oracle: oracle}, zap.NewNop())
	if err != nil {
		t.Fatalf("paymaster: %v", err)
	}
	return &instance{pm: pm, bank: bank, stakes: stakes}
}

// newEnvWithPolicy wires two chain instances around one manual clock,
// registers a funded XLP on both, and stakes it for the destination chain.
func newEnvWithPolicy(t *testing.T, policy FeePolicy) *env {
	t.Helper()
	clk := clock.NewManual(1_700_000_000)
	oracleKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	xlpKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	oracle := crypto.PubkeyToAddress(oracleKey.PublicKey)
	xlp := crypto.PubkeyToAddress(xlpKey.PublicKey)

	e := &env{
		clk:       clk,
		origin:    newInstance(t, clk, originChainID, pmAddrA, oracle, policy),
		dest:      newInstance(t, clk, destChainID, pmAddrB, oracle, policy),
		xlpKey:    xlpKey,
		xlp:       xlp,
		oracleKey: oracleKey,
	}

	for _, inst := range []*instance{e.origin, e.dest} {
		if err := inst.pm.RegisterXlpDirect(xlp, xlpL2); err != nil {
			t.Fatalf("register xlp: %v", err)
		}
	}

	// user funds on the origin chain
	e.origin.bank.Mint(sender, tokenX, big.NewInt(10_000_000))
	// XLP stake collateral and a working balance on the origin chain
	e.origin.bank.Mint(xlp, native, big.NewInt(10_000))
	if err := e.origin.pm.Stake(xlp, destChainID, big.NewInt(1_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	e.origin.bank.Mint(xlp, tokenX, big.NewInt(1_000_000))
	if err := e.origin.pm.DepositToXlp(xlp, xlp, swap.Asset{Token: tokenX, Amount: big.NewInt(100_000)}); err != nil {
		t.Fatalf("origin xlp deposit: %v", err)
	}
	// XLP delivery funds on the destination chain
	e.dest.bank.Mint(xlp, tokenY, big.NewInt(10_000_000))
	e.dest.bank.Mint(xlp, native, big.NewInt(1_000_000))
	if err := e.dest.pm.DepositToXlp(xlp, xlp, swap.Asset{Token: tokenY, Amount: big.NewInt(5_000_000)}); err != nil {
		t.Fatalf("dest xlp deposit: %v", err)
	}
	if err := e.dest.pm.DepositToXlp(xlp, xlp, swap.Asset{Token: native, Amount: big.NewInt(500_000)}); err != nil {
		t.Fatalf("dest xlp native deposit: %v", err)
	}
	return e
}

func newEnv(t *testing.T) *env {
	return newEnvWithPolicy(t, FeePolicyTreasury)
}

// newRequest builds a 1_000_000 tokenX for 990_000 tokenY request. The
// fee starts at 50 bps, grows 1 bps per second and caps at 300 bps.
func (e *env) newRequest(nonce uint64) swap.Request {
	return swap.Request{
		Origination: swap.OriginTerms{
			ChainID:   originChainID,
			Paymaster: pmAddrA,
			Sender:    sender,
			Assets:    []swap.Asset{{Token: tokenX, Amount: big.NewInt(1_000_000)}},
			Fee: swap.FeeRule{
				StartFeeBps:          50,
				MaxFeeBps:            300,
				FeeIncreaseBpsPerSec: 1,
				UnspentVoucherFeeBps: 25,
			},
			Nonce:       nonce,
			AllowedXlps: []common.Address{e.xlp},
		},
		Destination: swap.DestTerms{
			ChainID:       destChainID,
			Paymaster:     pmAddrB,
			Recipient:     recipient,
			Assets:        []swap.Asset{{Token: tokenY, Amount: big.NewInt(990_000)}},
			MaxUserOpCost: big.NewInt(30_000),
			ExpiresAt:     e.clk.Now() + 7*86_400,
		},
	}
}

func (e *env) signedVoucher(t *testing.T, req swap.Request) voucher.Voucher {
	t.Helper()
	v := voucher.Voucher{
		RequestID:   req.ID(),
		Xlp:         e.xlp,
		Dest:        req.Destination,
		ExpiresAt:   e.clk.Now() + 7_200,
		VoucherType: voucher.VoucherTypeStandard,
	}
	if err := voucher.Sign(&v, e.xlpKey, new(big.Int).SetUint64(destChainID), pmAddrB); err != nil {
		t.Fatalf("sign voucher: %v", err)
	}
	return v
}

func (e *env) lockAndIssue(t *testing.T, nonce uint64) (swap.Request, common.Hash) {
	t.Helper()
	req := e.newRequest(nonce)
	id, err := e.origin.pm.LockUserDeposit(sender, req)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	v := e.signedVoucher(t, req)
	if err := e.origin.pm.IssueVouchers([]voucher.Submission{{Request: req, Voucher: v}}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	return req, id
}

func wantBalance(t *testing.T, b *token.Bank, account, tok common.Address, want int64) {
	t.Helper()
	if got := b.BalanceOf(account, tok); got.Cmp(big.NewInt(want)) != 0 {
		t.Errorf("balance of %s token %s = %s, want %d", account.Hex(), tok.Hex(), got, want)
	}
}

// ── constructor ───────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	clk := clock.NewManual(0)
	bank := token.NewBank()
	stakes := stake.NewManager(stake.Params{}, clk, pmAddrA)
	verifier := OutcomeVerifier{}

	good := Params{ChainID: 1, Address: pmAddrA, FeePolicy: FeePolicyBurn}
	if _, err := New(good, clk, bank, stakes, verifier, nil); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	bad := []Params{
		{Address: pmAddrA, FeePolicy: FeePolicyBurn},                // no chain
		{ChainID: 1, FeePolicy: FeePolicyBurn},                      // no address
		{ChainID: 1, Address: pmAddrA},                              // no policy
		{ChainID: 1, Address: pmAddrA, FeePolicy: "blackhole"},      // bad policy
		{ChainID: 1, Address: pmAddrA, FeePolicy: FeePolicyTreasury}, // treasury policy, no treasury
	}
	for i, params := range bad {
		if _, err := New(params, clk, bank, stakes, verifier, nil); err == nil {
			t.Errorf("params %d accepted, want error", i)
		}
	}

	if _, err := New(good, clk, bank, stakes, nil, nil); err == nil {
		t.Error("nil verifier accepted")
	}
}
