package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xlplabs/crosspay/internal/api"
	"github.com/xlplabs/crosspay/internal/auth"
	"github.com/xlplabs/crosspay/internal/bridge"
	"github.com/xlplabs/crosspay/internal/clock"
	"github.com/xlplabs/crosspay/internal/config"
	"github.com/xlplabs/crosspay/internal/paymaster"
	"github.com/xlplabs/crosspay/internal/stake"
	"github.com/xlplabs/crosspay/internal/token"
	"github.com/xlplabs/crosspay/internal/xlp"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(os.Getenv("CROSSPAY_CONFIG"))
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Settlement engine ─────────────────────────────────────────────────────
	pm, err := buildEngine(cfg, clock.System{}, log)
	if err != nil {
		log.Fatal("engine init failed", zap.Error(err))
	}

	// ── Bridge relayer (inbound facts from peer chains) ───────────────────────
	if cfg.Bridge.Disabled {
		log.Warn("bridge disabled, XLP registration is direct and dispute outcomes stay local")
	} else {
		peers, err := cfg.Bridge.Peers()
		if err != nil {
			log.Fatal("bridge peer config invalid", zap.Error(err))
		}
		if len(peers) == 0 {
			log.Fatal("bridge enabled but bridge.peer_chain_ids is empty")
		}
		go bridge.NewRelayer(rdb, pm, cfg.Chain.ChainID, peers, log).Run(ctx)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	announcer := xlp.NewAnnouncer(rdb, log)
	v1 := r.Group("/v1")
	api.NewHandler(pm, announcer, log).Register(v1, auth.NewVerifier(rdb, log))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Uint64("chain", cfg.Chain.ChainID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// buildEngine assembles one chain instance from config: token bank,
// stake manager, paymaster. Direct XLP registration opens only when the
// bridge is disabled; otherwise registrations must arrive as relayed
// facts.
func buildEngine(cfg *config.Config, clk clock.Clock, log *zap.Logger) (*paymaster.Paymaster, error) {
	minStake, ok := new(big.Int).SetString(cfg.Stake.MinStakePerChain, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stake.min_stake_per_chain %q", cfg.Stake.MinStakePerChain)
	}

	pmAddr := common.HexToAddress(cfg.Chain.PaymasterAddress)
	stakes := stake.NewManager(stake.Params{
		MinStakePerChain: minStake,
		MaxChainsPerXlp:  cfg.Stake.MaxChainsPerXlp,
		UnstakeDelay:     cfg.Stake.UnstakeDelay,
	}, clk, pmAddr)

	return paymaster.New(paymaster.Params{
		ChainID:                    cfg.Chain.ChainID,
		Address:                    pmAddr,
		Treasury:                   common.HexToAddress(cfg.Chain.TreasuryAddress),
		FeePolicy:                  paymaster.FeePolicy(cfg.Chain.FeePolicy),
		UserCancellationDelay:      cfg.Chain.UserCancellationDelay,
		VoucherUnlockDelay:         cfg.Chain.VoucherUnlockDelay,
		DisputeWindow:              cfg.Chain.DisputeWindow,
		AllowDirectXlpRegistration: cfg.Bridge.Disabled,
	}, clk, token.NewBank(), stakes,
		paymaster.OutcomeVerifier{Oracle: common.HexToAddress(cfg.Chain.OracleAddress)}, log)
}
