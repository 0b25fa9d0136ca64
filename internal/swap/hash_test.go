package swap

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// testRequest builds a valid two-leg request used across the hashing tests.
func testRequest() Request {
	return Request{
		Origination: OriginTerms{
			ChainID:   1,
			Paymaster: common.HexToAddress("0x00000000000000000000000000000000000000A1"),
			Sender:    common.HexToAddress("0x00000000000000000000000000000000000000B1"),
			Assets: []Asset{
				{Token: common.HexToAddress("0x00000000000000000000000000000000000000C1"), Amount: big.NewInt(1_000_000)},
			},
			Fee: FeeRule{
				StartFeeBps:          50,
				MaxFeeBps:            300,
				FeeIncreaseBpsPerSec: 1,
				UnspentVoucherFeeBps: 25,
			},
			Nonce: 7,
			AllowedXlps: []common.Address{
				common.HexToAddress("0x00000000000000000000000000000000000000D1"),
				common.HexToAddress("0x00000000000000000000000000000000000000D2"),
			},
		},
		Destination: DestTerms{
			ChainID:       2,
			Paymaster:     common.HexToAddress("0x00000000000000000000000000000000000000A2"),
			Recipient:     common.HexToAddress("0x00000000000000000000000000000000000000B2"),
			Assets: []Asset{
				{Token: common.HexToAddress("0x00000000000000000000000000000000000000C2"), Amount: big.NewInt(990_000)},
			},
			MaxUserOpCost: big.NewInt(30_000),
			ExpiresAt:     1_900_000_000,
		},
	}
}

func TestRequestID_Deterministic(t *testing.T) {
	a := testRequest()
	b := testRequest()
	if a.ID() != b.ID() {
		t.Fatalf("identical content produced different ids: %s vs %s", a.ID(), b.ID())
	}
}

func TestRequestID_FieldSensitivity(t *testing.T) {
	base := testRequest().ID()

	mutations := map[string]func(*Request){
		"nonce":           func(r *Request) { r.Origination.Nonce++ },
		"origin chain":    func(r *Request) { r.Origination.ChainID = 99 },
		"sender":          func(r *Request) { r.Origination.Sender = common.HexToAddress("0xEE") },
		"asset amount":    func(r *Request) { r.Origination.Assets[0].Amount = big.NewInt(2) },
		"asset token":     func(r *Request) { r.Origination.Assets[0].Token = common.HexToAddress("0xEE") },
		"fee start":       func(r *Request) { r.Origination.Fee.StartFeeBps++ },
		"fee unspent":     func(r *Request) { r.Origination.Fee.UnspentVoucherFeeBps++ },
		"allowed xlp":     func(r *Request) { r.Origination.AllowedXlps[0] = common.HexToAddress("0xEE") },
		"dest chain":      func(r *Request) { r.Destination.ChainID = 99 },
		"dest recipient":  func(r *Request) { r.Destination.Recipient = common.HexToAddress("0xEE") },
		"dest expiry":     func(r *Request) { r.Destination.ExpiresAt++ },
		"max user op":     func(r *Request) { r.Destination.MaxUserOpCost = big.NewInt(1) },
		"extra asset":     func(r *Request) { r.Origination.Assets = append(r.Origination.Assets, Asset{Amount: big.NewInt(1)}) },
	}
	for name, mutate := range mutations {
		r := testRequest()
		mutate(&r)
		if r.ID() == base {
			t.Errorf("%s: mutation did not change the request id", name)
		}
	}
}

func TestRequestID_AllowedXlpsOrderIndependent(t *testing.T) {
	a := testRequest()
	b := testRequest()
	b.Origination.AllowedXlps[0], b.Origination.AllowedXlps[1] =
		b.Origination.AllowedXlps[1], b.Origination.AllowedXlps[0]

	if a.ID() != b.ID() {
		t.Fatal("allowed-xlp ordering must not change the request id")
	}
}

func TestRequestID_AssetOrderSignificant(t *testing.T) {
	a := testRequest()
	a.Origination.Assets = append(a.Origination.Assets,
		Asset{Token: common.HexToAddress("0xC9"), Amount: big.NewInt(5)})

	b := testRequest()
	b.Origination.Assets = append([]Asset{
		{Token: common.HexToAddress("0xC9"), Amount: big.NewInt(5)},
	}, b.Origination.Assets...)

	if a.ID() == b.ID() {
		t.Fatal("asset list ordering must be part of the request id")
	}
}

func TestDestTermsEqual(t *testing.T) {
	a := testRequest().Destination
	b := testRequest().Destination
	if !a.Equal(b) {
		t.Fatal("identical destination terms reported unequal")
	}
	b.Recipient = common.HexToAddress("0xEE")
	if a.Equal(b) {
		t.Fatal("tampered destination terms reported equal")
	}
}
