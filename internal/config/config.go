package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Chain  ChainConfig
	Stake  StakeConfig
	Bridge BridgeConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ChainConfig struct {
	ChainID               uint64 `mapstructure:"chain_id"`
	PaymasterAddress      string `mapstructure:"paymaster_address"`
	TreasuryAddress       string `mapstructure:"treasury_address"`
	FeePolicy             string `mapstructure:"fee_policy"`
	OracleAddress         string `mapstructure:"oracle_address"`
	UserCancellationDelay int64  `mapstructure:"user_cancellation_delay_sec"`
	VoucherUnlockDelay    int64  `mapstructure:"voucher_unlock_delay_sec"`
	DisputeWindow         int64  `mapstructure:"dispute_window_sec"`
}

type StakeConfig struct {
	MinStakePerChain string `mapstructure:"min_stake_per_chain"`
	MaxChainsPerXlp  int    `mapstructure:"max_chains_per_xlp"`
	UnstakeDelay     int64  `mapstructure:"unstake_delay_sec"`
}

type BridgeConfig struct {
	// Disabled switches the instance to the in-process connector and
	// opens direct XLP registration.
	Disabled     bool   `mapstructure:"disabled"`
	PeerChainIDs string `mapstructure:"peer_chain_ids"` // comma separated
}

// Peers parses the configured peer chain list.
func (c BridgeConfig) Peers() ([]uint64, error) {
	if strings.TrimSpace(c.PeerChainIDs) == "" {
		return nil, nil
	}
	parts := strings.Split(c.PeerChainIDs, ",")
	peers := make([]uint64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad peer chain id %q: %w", part, err)
		}
		peers = append(peers, id)
	}
	return peers, nil
}

// Load reads configuration from an optional YAML file and the
// environment. An explicit path must exist; without one the default
// locations are tried and skipped when absent.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("chain.fee_policy", "treasury")
	v.SetDefault("chain.user_cancellation_delay_sec", 300)
	v.SetDefault("chain.voucher_unlock_delay_sec", 3600)
	v.SetDefault("chain.dispute_window_sec", 3600)
	v.SetDefault("stake.min_stake_per_chain", "1000000000000000000")
	v.SetDefault("stake.max_chains_per_xlp", 8)
	v.SetDefault("stake.unstake_delay_sec", 86400)
	v.SetDefault("bridge.disabled", false)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/crosspay")
		_ = v.ReadInConfig()
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":                       "CROSSPAY_PORT",
		"redis.addr":                        "CROSSPAY_REDIS_ADDR",
		"redis.password":                    "CROSSPAY_REDIS_PASSWORD",
		"redis.db":                          "CROSSPAY_REDIS_DB",
		"chain.chain_id":                    "CROSSPAY_CHAIN_ID",
		"chain.paymaster_address":           "CROSSPAY_PAYMASTER_ADDRESS",
		"chain.treasury_address":            "CROSSPAY_TREASURY_ADDRESS",
		"chain.fee_policy":                  "CROSSPAY_FEE_POLICY",
		"chain.oracle_address":              "CROSSPAY_ORACLE_ADDRESS",
		"chain.user_cancellation_delay_sec": "CROSSPAY_USER_CANCELLATION_DELAY_SEC",
		"chain.voucher_unlock_delay_sec":    "CROSSPAY_VOUCHER_UNLOCK_DELAY_SEC",
		"chain.dispute_window_sec":          "CROSSPAY_DISPUTE_WINDOW_SEC",
		"stake.min_stake_per_chain":         "CROSSPAY_MIN_STAKE_PER_CHAIN",
		"stake.max_chains_per_xlp":          "CROSSPAY_MAX_CHAINS_PER_XLP",
		"stake.unstake_delay_sec":           "CROSSPAY_UNSTAKE_DELAY_SEC",
		"bridge.disabled":                   "CROSSPAY_BRIDGE_DISABLED",
		"bridge.peer_chain_ids":             "CROSSPAY_BRIDGE_PEER_CHAIN_IDS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Chain.PaymasterAddress, "CROSSPAY_PAYMASTER_ADDRESS"},
		{c.Chain.OracleAddress, "CROSSPAY_ORACLE_ADDRESS"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CROSSPAY_CHAIN_ID")
	}
	switch c.Chain.FeePolicy {
	case "burn":
	case "treasury":
		if c.Chain.TreasuryAddress == "" {
			return fmt.Errorf("required config missing: CROSSPAY_TREASURY_ADDRESS")
		}
	default:
		return fmt.Errorf("fee policy must be burn or treasury, got %q", c.Chain.FeePolicy)
	}
	if _, err := c.Bridge.Peers(); err != nil {
		return err
	}
	return nil
}
