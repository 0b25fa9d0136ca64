package api

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xlplabs/crosspay/internal/swap"
	"github.com/xlplabs/crosspay/internal/voucher"
)

// Actions bound into signed requests. Clients pass these to
// auth.BuildHeaders; the matching route refuses any other.
const (
	ActionLock           = "lock"
	ActionCancel         = "cancel"
	ActionIssueVouchers  = "issue_vouchers"
	ActionWithdraw       = "withdraw"
	ActionDispute        = "dispute"
	ActionResolveDispute = "resolve_dispute"
	ActionRedeem         = "redeem"
	ActionXlpDeposit     = "xlp_deposit"
	ActionStake          = "stake"
	ActionUnstake        = "unstake"
	ActionWithdrawStake  = "withdraw_stake"
)

// IssueRequest carries an issueVouchers batch.
type IssueRequest struct {
	Submissions []voucher.Submission `json:"submissions"`
}

// WithdrawRequest carries a settlement batch. Each entry must repeat the
// full original request; the engine recomputes ids from content.
type WithdrawRequest struct {
	Requests []swap.Request `json:"requests"`
}

// DisputeRequest names the swap to dispute.
type DisputeRequest struct {
	ID common.Hash `json:"id"`
}

// ResolveRequest pairs a disputed request with the oracle verdict proof.
type ResolveRequest struct {
	Request swap.Request `json:"request"`
	Proof   []byte       `json:"proof"`
}

// XlpDepositRequest credits asset from the authenticated wallet to an
// XLP's internal balance.
type XlpDepositRequest struct {
	Xlp   common.Address `json:"xlp"`
	Asset swap.Asset     `json:"asset"`
}

// StakeRequest mutates the authenticated XLP's stake on one chain.
type StakeRequest struct {
	ChainID uint64   `json:"chain_id"`
	Amount  *big.Int `json:"amount"`
}

// StakeWithdrawRequest collects matured unstaked funds.
type StakeWithdrawRequest struct {
	ChainID uint64 `json:"chain_id"`
}

// SwapView is the read model for an origin-side swap record.
type SwapView struct {
	ID              common.Hash    `json:"id"`
	Status          string         `json:"status"`
	LockedAt        int64          `json:"locked_at"`
	VoucherIssuedAt int64          `json:"voucher_issued_at"`
	DisputeRaisedAt int64          `json:"dispute_raised_at"`
	IssuerL1Xlp     common.Address `json:"voucher_issuer_l1_xlp"`
	IssuerL2Xlp     common.Address `json:"voucher_issuer_l2_xlp"`
}

func newSwapView(id common.Hash, m swap.Metadata) SwapView {
	return SwapView{
		ID:              id,
		Status:          m.Status.String(),
		LockedAt:        m.LockedAt,
		VoucherIssuedAt: m.VoucherIssuedAt,
		DisputeRaisedAt: m.DisputeRaisedAt,
		IssuerL1Xlp:     m.VoucherIssuerL1Xlp,
		IssuerL2Xlp:     m.VoucherIssuerL2Xlp,
	}
}

// IncomingView is the read model for a destination-side redemption record.
type IncomingView struct {
	ID        common.Hash    `json:"id"`
	Status    string         `json:"status"`
	ClaimedAt int64          `json:"claimed_at"`
	Xlp       common.Address `json:"xlp"`
}

func newIncomingView(id common.Hash, inc swap.Incoming) IncomingView {
	return IncomingView{
		ID:        id,
		Status:    inc.Status.String(),
		ClaimedAt: inc.ClaimedAt,
		Xlp:       inc.Xlp,
	}
}

// httpStatus maps the engine's failure taxonomy onto response codes.
// Unrecognized errors are treated as internal.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, swap.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, swap.ErrAlreadyExists),
		errors.Is(err, swap.ErrAlreadyClaimed),
		errors.Is(err, swap.ErrInvalidStatus),
		errors.Is(err, swap.ErrDelayNotElapsed),
		errors.Is(err, swap.ErrDisputeWindowClosed):
		return http.StatusConflict
	case errors.Is(err, swap.ErrUnauthorizedXlp),
		errors.Is(err, swap.ErrUnauthorizedCaller):
		return http.StatusForbidden
	case errors.Is(err, swap.ErrTransferFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, swap.ErrVoucherExpired),
		errors.Is(err, swap.ErrVoucherMismatch),
		errors.Is(err, swap.ErrInsufficientAmount),
		errors.Is(err, swap.ErrInsufficientStake),
		errors.Is(err, swap.ErrTooManyChains),
		errors.Is(err, swap.ErrWrongChain):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
