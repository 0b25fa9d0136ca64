package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/clock"
	"github.com/xlplabs/crosspay/internal/config"
)

// testConfig returns the smallest config buildEngine accepts: an
// unbridged treasury-policy instance on chain 1.
func testConfig() *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{
			ChainID:               1,
			PaymasterAddress:      "0x00000000000000000000000000000000000000AA",
			TreasuryAddress:       "0x00000000000000000000000000000000000000FE",
			FeePolicy:             "treasury",
			OracleAddress:         "0x00000000000000000000000000000000000000CE",
			UserCancellationDelay: 300,
			VoucherUnlockDelay:    3600,
			DisputeWindow:         3600,
		},
		Stake: config.StakeConfig{
			MinStakePerChain: "100",
			MaxChainsPerXlp:  4,
			UnstakeDelay:     86_400,
		},
		Bridge: config.BridgeConfig{Disabled: true},
	}
}

func TestBuildEngine(t *testing.T) {
	pm, err := buildEngine(testConfig(), clock.NewManual(1_700_000_000), zap.NewNop())
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	if pm.ChainID() != 1 {
		t.Errorf("ChainID = %d, want 1", pm.ChainID())
	}

	// A disabled bridge opens direct registration.
	l1 := common.HexToAddress("0x0000000000000000000000000000000000000E01")
	l2 := common.HexToAddress("0x0000000000000000000000000000000000000E02")
	if err := pm.RegisterXlpDirect(l1, l2); err != nil {
		t.Fatalf("RegisterXlpDirect on an unbridged instance: %v", err)
	}
	if got := pm.XlpCount(); got != 1 {
		t.Errorf("XlpCount = %d, want 1", got)
	}
}

func TestBuildEngine_BridgedInstanceRejectsDirectRegistration(t *testing.T) {
	cfg := testConfig()
	cfg.Bridge.Disabled = false

	pm, err := buildEngine(cfg, clock.NewManual(1_700_000_000), zap.NewNop())
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	l1 := common.HexToAddress("0x0000000000000000000000000000000000000E01")
	if err := pm.RegisterXlpDirect(l1, l1); err == nil {
		t.Fatal("RegisterXlpDirect succeeded on a bridged instance")
	}
}

func TestBuildEngine_RejectsMalformedMinStake(t *testing.T) {
	cfg := testConfig()
	cfg.Stake.MinStakePerChain = "one hundred"
	if _, err := buildEngine(cfg, clock.System{}, zap.NewNop()); err == nil {
		t.Fatal("expected error for malformed min_stake_per_chain")
	}
}

func TestBuildEngine_RejectsUnknownFeePolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Chain.FeePolicy = "lottery"
	if _, err := buildEngine(cfg, clock.System{}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown fee policy")
	}
}
