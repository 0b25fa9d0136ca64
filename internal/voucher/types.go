package voucher

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xlplabs/crosspay/internal/swap"
)

// VoucherTypeStandard is the only voucher class currently issued. The tag
// is part of the signed payload so future classes cannot be replayed as
// this one.
const VoucherTypeStandard uint8 = 1

// Voucher is an XLP's signed commitment to deliver the destination leg of
// a swap. Dest repeats the destination terms verbatim: the origin engine
// checks them against the locked request, the destination engine holds the
// XLP to them at redemption.
type Voucher struct {
	RequestID   common.Hash    `json:"request_id"`
	Xlp         common.Address `json:"xlp"`
	Dest        swap.DestTerms `json:"dest"`
	ExpiresAt   int64          `json:"expires_at"`
	VoucherType uint8          `json:"voucher_type"`
	Signature   []byte         `json:"signature"`
}

// Submission pairs a voucher with the full request it claims, as carried
// in an issueVouchers batch.
type Submission struct {
	Request swap.Request `json:"request"`
	Voucher Voucher      `json:"voucher"`
}
