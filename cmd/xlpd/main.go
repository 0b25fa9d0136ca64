// cmd/xlpd runs one XLP worker: it consumes swap announcements from an
// origin chain instance and serves them toward a destination instance
// under a single liquidity-provider identity.
//
// The voucher signing key is resolved in order:
//
//  1. XLP_PRIVATE_KEY env (hex, "0x" optional)
//  2. --key-file (file holding the key as hex)
//  3. the signer vault (internal/keyvault; MOCK_KEY_VAULT=true for dev)
//
// Usage:
//
//	XLP_PRIVATE_KEY=0x<key> \
//	xlpd \
//	  --origin-url   http://chain-a:8080 \
//	  --origin-chain 1 \
//	  --dest-url     http://chain-b:8080 \
//	  --dest-chain   2 \
//	  --redis        redis:6379
package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/keyvault"
	"github.com/xlplabs/crosspay/internal/xlp"
)

func main() {
	originURL := flag.String("origin-url", "http://localhost:8080", "origin chain instance URL")
	destURL := flag.String("dest-url", "http://localhost:8081", "destination chain instance URL")
	originChain := flag.Uint64("origin-chain", 0, "origin chain id")
	destChain := flag.Uint64("dest-chain", 0, "destination chain id")
	redisAddr := flag.String("redis", "redis:6379", "redis address (announcement feed + progress store)")
	redisPassword := flag.String("redis-password", "", "redis password")
	keyFile := flag.String("key-file", "", "file holding the voucher key as hex")
	voucherTTL := flag.Int64("voucher-ttl", 7_200, "seconds a signed voucher stays redeemable")
	maxPrincipal := flag.String("max-principal", "", "skip swaps above this origination amount")
	minFeeBps := flag.Uint("min-fee-bps", 0, "skip swaps whose projected fee rate is below this")
	unlockDelay := flag.Int64("unlock-delay", 3600, "origin unlock delay assumed by the fee projection")
	tokens := flag.String("tokens", "", "comma-separated token allowlist, zero address for native")
	settleEvery := flag.Duration("settle-every", 15*time.Second, "settlement sweep interval")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key, err := resolveKey(ctx, *keyFile)
	if err != nil {
		log.Fatal("voucher key unavailable", zap.Error(err))
	}

	params := xlp.Params{
		Key:           key,
		OriginChainID: *originChain,
		DestChainID:   *destChain,
		VoucherTTL:    *voucherTTL,
		MinFeeBps:     uint32(*minFeeBps),
		UnlockDelay:   *unlockDelay,
	}
	if *maxPrincipal != "" {
		mp, ok := new(big.Int).SetString(*maxPrincipal, 10)
		if !ok {
			log.Fatal("invalid --max-principal", zap.String("value", *maxPrincipal))
		}
		params.MaxPrincipal = mp
	}
	params.SupportedTokens = parseTokens(*tokens)

	rdb := redis.NewClient(&redis.Options{
		Addr:     *redisAddr,
		Password: *redisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	w, err := xlp.NewWorker(params,
		xlp.NewClient(*originURL, key),
		xlp.NewClient(*destURL, key),
		rdb, log)
	if err != nil {
		log.Fatal("worker init failed", zap.Error(err))
	}
	log.Info("xlpd starting",
		zap.String("xlp", w.Xlp().Hex()),
		zap.Uint64("origin_chain", *originChain),
		zap.Uint64("dest_chain", *destChain))

	go w.Run(ctx)
	go w.RunSettlement(ctx, *settleEvery)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()
	log.Info("shutdown complete")
}

// resolveKey finds the voucher signing key: env hex first, then the key
// file, then the signer vault.
func resolveKey(ctx context.Context, keyFile string) (*ecdsa.PrivateKey, error) {
	if hexKey := strings.TrimPrefix(os.Getenv("XLP_PRIVATE_KEY"), "0x"); hexKey != "" {
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("XLP_PRIVATE_KEY: %w", err)
		}
		return key, nil
	}
	if keyFile != "" {
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		hexKey := strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", keyFile, err)
		}
		return key, nil
	}
	sk, err := keyvault.Get(ctx)
	if err != nil {
		return nil, err
	}
	return crypto.HexToECDSA(sk.PrivateKeyHex)
}

// parseTokens splits a comma-separated address list.
func parseTokens(list string) []common.Address {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]common.Address, 0, len(parts))
	for _, part := range parts {
		out = append(out, common.HexToAddress(strings.TrimSpace(part)))
	}
	return out
}
