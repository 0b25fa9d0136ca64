package swap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10_000

// Asset is a (token, amount) pair. The zero token address denotes the
// chain's native asset.
type Asset struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

// FeeRule is the time-based fee schedule locked into a request at
// submission. All rates are basis points of principal (100 = 1%). The fee
// grows linearly from StartFeeBps by FeeIncreaseBpsPerSec and is capped at
// MaxFeeBps. UnspentVoucherFeeBps is the issuer penalty applied when a
// voucher is slashed without being spent.
type FeeRule struct {
	StartFeeBps          uint32 `json:"start_fee_bps"`
	MaxFeeBps            uint32 `json:"max_fee_bps"`
	FeeIncreaseBpsPerSec uint32 `json:"fee_increase_bps_per_sec"`
	UnspentVoucherFeeBps uint32 `json:"unspent_voucher_fee_bps"`
}

// FeeBps returns the fee rate in basis points after elapsed seconds.
// The result never decreases with elapsed and never exceeds MaxFeeBps.
func (f FeeRule) FeeBps(elapsed int64) uint32 {
	if f.StartFeeBps >= f.MaxFeeBps {
		return f.MaxFeeBps
	}
	if elapsed <= 0 || f.FeeIncreaseBpsPerSec == 0 {
		return f.StartFeeBps
	}
	headroom := uint64(f.MaxFeeBps - f.StartFeeBps)
	if uint64(elapsed) > headroom/uint64(f.FeeIncreaseBpsPerSec) {
		return f.MaxFeeBps
	}
	return f.StartFeeBps + uint32(uint64(f.FeeIncreaseBpsPerSec)*uint64(elapsed))
}

// FeeAmount returns the fee owed on amount after elapsed seconds.
func (f FeeRule) FeeAmount(amount *big.Int, elapsed int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(f.FeeBps(elapsed))))
	return fee.Div(fee, big.NewInt(BpsDenominator))
}

// OriginTerms is the origin-chain leg of a voucher request: what the user
// locks, who may claim it, and on what fee schedule.
type OriginTerms struct {
	ChainID     uint64           `json:"chain_id"`
	Paymaster   common.Address   `json:"paymaster"`
	Sender      common.Address   `json:"sender"`
	Assets      []Asset          `json:"assets"`
	Fee         FeeRule          `json:"fee"`
	Nonce       uint64           `json:"nonce"`
	AllowedXlps []common.Address `json:"allowed_xlps,omitempty"`
}

// DestTerms is the destination-chain leg: what the claiming XLP must
// deliver, to whom, at what gas-reimbursement ceiling, and by when.
type DestTerms struct {
	ChainID       uint64         `json:"chain_id"`
	Paymaster     common.Address `json:"paymaster"`
	Recipient     common.Address `json:"recipient"`
	Assets        []Asset        `json:"assets"`
	MaxUserOpCost *big.Int       `json:"max_user_op_cost"`
	ExpiresAt     int64          `json:"expires_at"`
}

// Request is a full voucher request. Its identity is ID(), a pure function
// of content: resubmitting identical content collides on purpose.
type Request struct {
	Origination OriginTerms `json:"origination"`
	Destination DestTerms   `json:"destination"`
}

// Validate checks structural soundness before any state is touched.
func (r Request) Validate() error {
	if len(r.Origination.Assets) == 0 {
		return fmt.Errorf("%w: no origination assets", ErrInsufficientAmount)
	}
	for i, a := range r.Origination.Assets {
		if err := validAmount(a.Amount); err != nil {
			return fmt.Errorf("origination asset %d: %w", i, err)
		}
	}
	for i, a := range r.Destination.Assets {
		if err := validAmount(a.Amount); err != nil {
			return fmt.Errorf("destination asset %d: %w", i, err)
		}
	}
	if c := r.Destination.MaxUserOpCost; c != nil && (c.Sign() < 0 || c.BitLen() > 256) {
		return fmt.Errorf("%w: bad max user op cost", ErrInsufficientAmount)
	}
	return nil
}

func validAmount(v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInsufficientAmount)
	}
	if v.BitLen() > 256 {
		return fmt.Errorf("%w: amount exceeds 256 bits", ErrInsufficientAmount)
	}
	return nil
}

// Metadata is the per-request record the engine stores. The full request
// is not retained: mutating operations re-supply it and the engine
// recomputes the id, contract style.
type Metadata struct {
	Status             Status         `json:"status"`
	LockedAt           int64          `json:"locked_at"`
	VoucherIssuedAt    int64          `json:"voucher_issued_at,omitempty"`
	DisputeRaisedAt    int64          `json:"dispute_raised_at,omitempty"`
	VoucherIssuerL1Xlp common.Address `json:"voucher_issuer_l1_xlp,omitempty"`
	VoucherIssuerL2Xlp common.Address `json:"voucher_issuer_l2_xlp,omitempty"`
}

// Incoming is the destination-side record guarding against voucher replay.
type Incoming struct {
	Status    IncomingStatus `json:"status"`
	ClaimedAt int64          `json:"claimed_at,omitempty"`
	Xlp       common.Address `json:"xlp,omitempty"`
}
