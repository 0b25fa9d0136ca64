package main

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xlplabs/crosspay/internal/paymaster"
	"github.com/xlplabs/crosspay/internal/swap"
)

func testRequest() swap.Request {
	return swap.Request{
		Origination: swap.OriginTerms{
			ChainID:   1,
			Paymaster: common.HexToAddress("0x00000000000000000000000000000000000000A1"),
			Sender:    common.HexToAddress("0x0000000000000000000000000000000000000011"),
			Assets: []swap.Asset{
				{Token: common.HexToAddress("0x0000000000000000000000000000000000000D01"), Amount: big.NewInt(1_000)},
			},
			Fee:   swap.FeeRule{StartFeeBps: 100, MaxFeeBps: 100},
			Nonce: 7,
		},
		Destination: swap.DestTerms{
			ChainID:   2,
			Paymaster: common.HexToAddress("0x00000000000000000000000000000000000000B2"),
			Recipient: common.HexToAddress("0x0000000000000000000000000000000000000C02"),
			Assets: []swap.Asset{
				{Token: common.HexToAddress("0x0000000000000000000000000000000000000D02"), Amount: big.NewInt(900)},
			},
			ExpiresAt: 1_700_086_400,
		},
	}
}

func TestParseChains(t *testing.T) {
	cases := map[string]struct {
		in   string
		want []uint64
	}{
		"two":        {"1,2", []uint64{1, 2}},
		"spaced":     {" 1, 2 ,5", []uint64{1, 2, 5}},
		"single":     {"1", nil},
		"zero":       {"0,1", nil},
		"duplicate":  {"1,2,1", nil},
		"not number": {"1,two", nil},
		"empty":      {"", nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := parseChains(tc.in)
			if tc.want == nil {
				if err == nil {
					t.Fatalf("parseChains(%q): expected error, got %v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseChains(%q): %v", tc.in, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("parseChains(%q) = %v, want %v", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("parseChains(%q)[%d] = %d, want %d", tc.in, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestOrderedPairs(t *testing.T) {
	pairs := orderedPairs([]uint64{1, 2})
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %v", pairs)
	}
	if pairs[0] != [2]uint64{1, 2} || pairs[1] != [2]uint64{2, 1} {
		t.Errorf("pairs = %v, want [[1 2] [2 1]]", pairs)
	}

	pairs = orderedPairs([]uint64{1, 2, 3})
	if len(pairs) != 6 {
		t.Fatalf("expected 6 pairs for three chains, got %d", len(pairs))
	}
	for _, p := range pairs {
		if p[0] == p[1] {
			t.Errorf("self pair %v", p)
		}
	}
}

func TestParseVerdict(t *testing.T) {
	if v, err := parseVerdict("slashed"); err != nil || v != paymaster.VerdictSlashed {
		t.Errorf("slashed: got %v, %v", v, err)
	}
	if v, err := parseVerdict("SUCCESSFUL"); err != nil || v != paymaster.VerdictSuccessful {
		t.Errorf("SUCCESSFUL: got %v, %v", v, err)
	}
	for _, bad := range []string{"", "none", "guilty"} {
		if _, err := parseVerdict(bad); err == nil {
			t.Errorf("parseVerdict(%q): expected error", bad)
		}
	}
}

func TestParseAmount(t *testing.T) {
	n, err := parseAmount("1000000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if n.String() != "1000000000000000000" {
		t.Errorf("amount = %s", n)
	}
	for _, bad := range []string{"", "0", "-5", "1.5", "abc"} {
		if _, err := parseAmount(bad); err == nil {
			t.Errorf("parseAmount(%q): expected error", bad)
		}
	}
}

func TestReadRequest(t *testing.T) {
	req := testRequest()
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "swap.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readRequest(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != req.ID() {
		t.Errorf("round trip changed the id: %s != %s", got.ID().Hex(), req.ID().Hex())
	}
}

func TestReadRequest_Rejects(t *testing.T) {
	dir := t.TempDir()

	if _, err := readRequest(""); err == nil {
		t.Error("empty path: expected error")
	}
	if _, err := readRequest(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file: expected error")
	}

	garbled := filepath.Join(dir, "garbled.json")
	if err := os.WriteFile(garbled, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readRequest(garbled); err == nil {
		t.Error("garbled file: expected error")
	}

	// Parses but fails structural validation.
	bad := testRequest()
	bad.Origination.Assets[0].Amount = big.NewInt(0)
	raw, err := json.Marshal(bad)
	if err != nil {
		t.Fatal(err)
	}
	zeroAmount := filepath.Join(dir, "zero.json")
	if err := os.WriteFile(zeroAmount, raw, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readRequest(zeroAmount); err == nil {
		t.Error("zero amount: expected error")
	}
}

func TestSigningKey(t *testing.T) {
	const keyHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f5d3c96ec6c6d5a0c1"
	t.Setenv("SWAPCTL_PRIVATE_KEY", "0x"+keyHex)

	key, err := signingKey()
	if err != nil {
		t.Fatal(err)
	}
	want, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		t.Fatal(err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != crypto.PubkeyToAddress(want.PublicKey) {
		t.Error("key does not match the env value")
	}
}

func TestSigningKey_Missing(t *testing.T) {
	t.Setenv("SWAPCTL_PRIVATE_KEY", "")
	if _, err := signingKey(); err == nil {
		t.Error("expected error without SWAPCTL_PRIVATE_KEY")
	}
}
