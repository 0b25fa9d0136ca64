package swap

import "errors"

// Failure taxonomy of the settlement protocol. Callers match with
// errors.Is; the HTTP layer maps these onto status codes.
var (
	ErrAlreadyExists       = errors.New("request already exists")
	ErrUnknownRequest      = errors.New("unknown request")
	ErrInvalidStatus       = errors.New("invalid status for operation")
	ErrUnauthorizedXlp     = errors.New("unauthorized xlp")
	ErrVoucherExpired      = errors.New("voucher expired")
	ErrVoucherMismatch     = errors.New("voucher does not match request")
	ErrDelayNotElapsed     = errors.New("delay not elapsed")
	ErrDisputeWindowClosed = errors.New("dispute window closed")
	ErrAlreadyClaimed      = errors.New("voucher already claimed")
	ErrInsufficientStake   = errors.New("insufficient stake")
	ErrInsufficientAmount  = errors.New("insufficient amount")
	ErrTooManyChains       = errors.New("max staked chains reached")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrWrongChain          = errors.New("not addressed to this chain")
	ErrUnauthorizedCaller  = errors.New("caller not authorized")
)
