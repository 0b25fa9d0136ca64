package swap

// Status tracks an origin-side swap through its lifecycle. Values match
// the protocol's settlement status enum.
type Status uint8

const (
	StatusNone Status = iota
	StatusNew
	StatusVoucherIssued
	StatusCancelled
	StatusDisputed
	StatusSlashed
	StatusSuccessful
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusNew:
		return "NEW"
	case StatusVoucherIssued:
		return "VOUCHER_ISSUED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusDisputed:
		return "DISPUTED"
	case StatusSlashed:
		return "SLASHED"
	case StatusSuccessful:
		return "SUCCESSFUL"
	default:
		return "INVALID"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusSlashed || s == StatusSuccessful
}

// IncomingStatus tracks a destination-side redemption.
type IncomingStatus uint8

const (
	IncomingNone IncomingStatus = iota
	IncomingClaimed
)

func (s IncomingStatus) String() string {
	switch s {
	case IncomingNone:
		return "NONE"
	case IncomingClaimed:
		return "CLAIMED"
	default:
		return "INVALID"
	}
}
