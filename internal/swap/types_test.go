package swap

import (
	"errors"
	"math/big"
	"testing"
)

// ── fee schedule ──────────────────────────────────────────────────────────

func TestFeeBps_LinearGrowthAndCap(t *testing.T) {
	f := FeeRule{StartFeeBps: 50, MaxFeeBps: 300, FeeIncreaseBpsPerSec: 1}

	cases := []struct {
		elapsed int64
		want    uint32
	}{
		{-5, 50},
		{0, 50},
		{1, 51},
		{100, 150},
		{250, 300},
		{251, 300},
		{1 << 40, 300},
	}
	for _, c := range cases {
		if got := f.FeeBps(c.elapsed); got != c.want {
			t.Errorf("FeeBps(%d) = %d, want %d", c.elapsed, got, c.want)
		}
	}
}

func TestFeeBps_Monotone(t *testing.T) {
	f := FeeRule{StartFeeBps: 10, MaxFeeBps: 5000, FeeIncreaseBpsPerSec: 3}
	prev := uint32(0)
	for elapsed := int64(0); elapsed < 3000; elapsed += 7 {
		got := f.FeeBps(elapsed)
		if got < prev {
			t.Fatalf("fee decreased: FeeBps(%d) = %d after %d", elapsed, got, prev)
		}
		if got > f.MaxFeeBps {
			t.Fatalf("fee exceeded cap: FeeBps(%d) = %d", elapsed, got)
		}
		prev = got
	}
}

func TestFeeBps_FlatWhenNoIncrease(t *testing.T) {
	f := FeeRule{StartFeeBps: 80, MaxFeeBps: 500}
	if got := f.FeeBps(1 << 50); got != 80 {
		t.Fatalf("flat schedule moved: got %d", got)
	}
}

func TestFeeBps_StartAboveMaxClampsToMax(t *testing.T) {
	f := FeeRule{StartFeeBps: 700, MaxFeeBps: 300, FeeIncreaseBpsPerSec: 1}
	if got := f.FeeBps(0); got != 300 {
		t.Fatalf("malformed rule not clamped: got %d", got)
	}
}

func TestFeeAmount(t *testing.T) {
	f := FeeRule{StartFeeBps: 100, MaxFeeBps: 100}
	principal, _ := new(big.Int).SetString("1000000000000000000", 10) // 1e18
	want, _ := new(big.Int).SetString("10000000000000000", 10)       // 1% of 1e18

	if got := f.FeeAmount(principal, 0); got.Cmp(want) != 0 {
		t.Fatalf("FeeAmount = %s, want %s", got, want)
	}
	// principal must not be mutated
	check, _ := new(big.Int).SetString("1000000000000000000", 10)
	if principal.Cmp(check) != 0 {
		t.Fatal("FeeAmount mutated its input")
	}
}

// ── validation ────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	good := testRequest()
	if err := good.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	noAssets := testRequest()
	noAssets.Origination.Assets = nil
	if err := noAssets.Validate(); !errors.Is(err, ErrInsufficientAmount) {
		t.Errorf("empty origination assets: got %v", err)
	}

	nilAmount := testRequest()
	nilAmount.Origination.Assets[0].Amount = nil
	if err := nilAmount.Validate(); !errors.Is(err, ErrInsufficientAmount) {
		t.Errorf("nil amount: got %v", err)
	}

	negative := testRequest()
	negative.Destination.Assets[0].Amount = big.NewInt(-1)
	if err := negative.Validate(); !errors.Is(err, ErrInsufficientAmount) {
		t.Errorf("negative amount: got %v", err)
	}
}

// ── status enum ───────────────────────────────────────────────────────────

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusNone:          "NONE",
		StatusNew:           "NEW",
		StatusVoucherIssued: "VOUCHER_ISSUED",
		StatusCancelled:     "CANCELLED",
		StatusDisputed:      "DISPUTED",
		StatusSlashed:       "SLASHED",
		StatusSuccessful:    "SUCCESSFUL",
		Status(42):          "INVALID",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %s, want %s", uint8(s), s, want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCancelled, StatusSlashed, StatusSuccessful}
	live := []Status{StatusNone, StatusNew, StatusVoucherIssued, StatusDisputed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
