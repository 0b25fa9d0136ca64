// Package paymaster implements one chain instance of the cross-chain
// settlement engine: the origin-side swap manager, the destination-side
// settlement, and the XLP registry behind a single facade. The paymaster
// and the swap manager are one component; callers see two logical
// surfaces over shared state.
package paymaster

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/clock"
	"github.com/xlplabs/crosspay/internal/stake"
	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/token"
	"github.com/xlplabs/crosspay/internal/voucher"
)

// FeePolicy selects where collected fees go.
type FeePolicy string

const (
	FeePolicyBurn     FeePolicy = "burn"
	FeePolicyTreasury FeePolicy = "treasury"
)

func (p FeePolicy) Valid() bool {
	return p == FeePolicyBurn || p == FeePolicyTreasury
}

// Params configure one chain instance.
type Params struct {
	ChainID               uint64
	Address               common.Address // the paymaster's own custody account
	Treasury              common.Address
	FeePolicy             FeePolicy
	UserCancellationDelay int64 // seconds before a NEW request may be cancelled
	VoucherUnlockDelay    int64 // seconds before an issued voucher may be withdrawn against
	DisputeWindow         int64 // seconds after issuance during which a dispute may be raised

	// AllowDirectXlpRegistration opens RegisterXlpDirect. Only set when
	// the bridge connector is the disabled variant (test deployments).
	AllowDirectXlpRegistration bool
}

func (p Params) validate() error {
	if p.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if p.Address == (common.Address{}) {
		return fmt.Errorf("paymaster address is required")
	}
	if !p.FeePolicy.Valid() {
		return fmt.Errorf("fee policy must be %q or %q", FeePolicyBurn, FeePolicyTreasury)
	}
	if p.FeePolicy == FeePolicyTreasury && p.Treasury == (common.Address{}) {
		return fmt.Errorf("treasury address is required for the treasury fee policy")
	}
	if p.UserCancellationDelay < 0 || p.VoucherUnlockDelay < 0 || p.DisputeWindow < 0 {
		return fmt.Errorf("delays must be non-negative")
	}
	return nil
}

// xlpAccount is a registered liquidity provider as seen by this chain
// instance. balances are funds the XLP holds inside the paymaster on
// this chain, credited by deposits and withdrawals and drained by
// redemptions.
type xlpAccount struct {
	l1           common.Address
	l2           common.Address
	registeredAt int64
	balances     map[common.Address]*big.Int // token -> amount
}

// Paymaster holds the full settlement state for one chain. All command
// handlers run under a single mutex and are all-or-nothing: a status
// update and its balance movement commit together or not at all.
type Paymaster struct {
	params   Params
	chainID  *big.Int
	clock    clock.Clock
	bank     *token.Bank
	stakes   *stake.Manager
	verifier DisputeVerifier
	log      *zap.Logger

	mu       sync.RWMutex
	swaps    map[common.Hash]*swap.Metadata
	incoming map[common.Hash]*swap.Incoming
	xlps     map[common.Address]*xlpAccount
	xlpOrder []common.Address // registration order, drives pagination
}

func New(params Params, clk clock.Clock, bank *token.Bank, stakes *stake.Manager, verifier DisputeVerifier, log *zap.Logger) (*Paymaster, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("paymaster params: %w", err)
	}
	if clk == nil || bank == nil || stakes == nil {
		return nil, fmt.Errorf("paymaster requires a clock, a bank and a stake manager")
	}
	if verifier == nil {
		return nil, fmt.Errorf("paymaster requires a dispute verifier")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Paymaster{
		params:   params,
		chainID:  new(big.Int).SetUint64(params.ChainID),
		clock:    clk,
		bank:     bank,
		stakes:   stakes,
		verifier: verifier,
		log:      log,
		swaps:    make(map[common.Hash]*swap.Metadata),
		incoming: make(map[common.Hash]*swap.Incoming),
		xlps:     make(map[common.Address]*xlpAccount),
	}, nil
}

// ChainID returns the chain this instance settles for.
func (p *Paymaster) ChainID() uint64 { return p.params.ChainID }

// Address returns the paymaster's custody account.
func (p *Paymaster) Address() common.Address { return p.params.Address }

// GetAtomicSwap returns the record for a request id. Unknown ids report
// status NONE, mirroring contract storage semantics.
func (p *Paymaster) GetAtomicSwap(id common.Hash) swap.Metadata {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if meta := p.swaps[id]; meta != nil {
		return *meta
	}
	return swap.Metadata{}
}

// GetIncomingSwap returns the destination-side record for a request id.
// Unknown ids report status NONE.
func (p *Paymaster) GetIncomingSwap(id common.Hash) swap.Incoming {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if in := p.incoming[id]; in != nil {
		return *in
	}
	return swap.Incoming{}
}

// validateVoucherLocked checks a voucher against its locked request:
// terms must match field-for-field, the voucher must be unexpired, and
// the signature must recover to an allow-listed, registered XLP with
// sufficient stake on the destination chain. Returns the issuer account.
// Caller holds p.mu.
func (p *Paymaster) validateVoucherLocked(req swap.Request, v *voucher.Voucher, id common.Hash, now int64) (*xlpAccount, error) {
	if v.RequestID != id {
		return nil, fmt.Errorf("%w: voucher for request %s", swap.ErrVoucherMismatch, v.RequestID)
	}
	if !v.Dest.Equal(req.Destination) {
		return nil, fmt.Errorf("%w: destination terms differ", swap.ErrVoucherMismatch)
	}
	if now >= v.ExpiresAt {
		return nil, fmt.Errorf("%w: expired at %d, now %d", swap.ErrVoucherExpired, v.ExpiresAt, now)
	}
	// Vouchers are signed under the destination deployment's EIP-712
	// domain so they cannot be replayed across chains. The origin side
	// derives that domain from the request's destination leg.
	recovered, err := voucher.Verify(v, new(big.Int).SetUint64(v.Dest.ChainID), v.Dest.Paymaster)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", swap.ErrUnauthorizedXlp, err)
	}
	if recovered != v.Xlp {
		return nil, fmt.Errorf("%w: signature recovers to %s, voucher names %s",
			swap.ErrUnauthorizedXlp, recovered.Hex(), v.Xlp.Hex())
	}
	if len(req.Origination.AllowedXlps) > 0 && !containsAddress(req.Origination.AllowedXlps, v.Xlp) {
		return nil, fmt.Errorf("%w: %s not in allowed set", swap.ErrUnauthorizedXlp, v.Xlp.Hex())
	}
	acct := p.xlps[v.Xlp]
	if acct == nil {
		return nil, fmt.Errorf("%w: %s not registered", swap.ErrUnauthorizedXlp, v.Xlp.Hex())
	}
	if !p.stakes.Eligible(v.Xlp, req.Destination.ChainID) {
		return nil, fmt.Errorf("%w: %s below minimum on chain %d",
			swap.ErrInsufficientStake, v.Xlp.Hex(), req.Destination.ChainID)
	}
	return acct, nil
}

// creditXlpLocked adds amount of token to an XLP's internal balance.
// Caller holds p.mu.
func (p *Paymaster) creditXlpLocked(acct *xlpAccount, tok common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	if bal, ok := acct.balances[tok]; ok {
		bal.Add(bal, amount)
	} else {
		acct.balances[tok] = new(big.Int).Set(amount)
	}
}

// debitXlpLocked removes amount of token from an XLP's internal balance.
// Caller holds p.mu and must have checked availability.
func (p *Paymaster) debitXlpLocked(acct *xlpAccount, tok common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	bal := acct.balances[tok]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: xlp %s balance short for token %s",
			swap.ErrTransferFailed, acct.l1.Hex(), tok.Hex())
	}
	bal.Sub(bal, amount)
	return nil
}

// disposeFeeLocked settles a collected fee according to the fee policy.
// Custody for the fee is guaranteed by the lock that collected the
// principal, so a failure here indicates corrupted state.
func (p *Paymaster) disposeFeeLocked(tok common.Address, fee *big.Int) error {
	if fee == nil || fee.Sign() <= 0 {
		return nil
	}
	switch p.params.FeePolicy {
	case FeePolicyBurn:
		return p.bank.Burn(p.params.Address, tok, fee)
	case FeePolicyTreasury:
		return p.bank.Transfer(p.params.Address, p.params.Treasury, tok, fee)
	}
	return fmt.Errorf("unknown fee policy %q", p.params.FeePolicy)
}

func containsAddress(addrs []common.Address, a common.Address) bool {
	for _, x := range addrs {
		if x == a {
			return true
		}
	}
	return false
}
