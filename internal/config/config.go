// Package config loads orchestrator settings from a .env file, the environment and an optional
// config file.
package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "STAKE"

// Ethereum mainnet Polygon PoS deployments.
const (
	DefaultStakeManager   = "0x5e3Ef299fDDf15eAa0432E6e66473ace8c13D908"
	DefaultStakingToken   = "0x7D1AfA7B718fb893dB30A3aBc0Cfc608AaCfeBB0"
	DefaultDepositManager = "0xA0c68C638235ee32657e8f720a23ceC1bFc77C77"
)

type Config struct {
	RootRPCURL     string        `mapstructure:"root_rpc_url"`
	ChildRPCURL    string        `mapstructure:"child_rpc_url"`
	PrivateKey     string        `mapstructure:"private_key"`
	StakeManager   string        `mapstructure:"stake_manager"`
	StakingToken   string        `mapstructure:"staking_token"`
	DepositManager string        `mapstructure:"deposit_manager"`
	GasStationURL  string        `mapstructure:"gas_station_url"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	// GasSafetyMarginWei is a decimal string so values above 2^63 survive env parsing.
	GasSafetyMarginWei string `mapstructure:"gas_safety_margin_wei"`
	FeeCeilingGwei     uint64 `mapstructure:"fee_ceiling_gwei"`
	LogLevel           string `mapstructure:"log_level"`
	LogConsole         bool   `mapstructure:"log_console"`
	MetricsAddr        string `mapstructure:"metrics_addr"`
}

// SetDefaults registers every key with its default so env binding covers all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root_rpc_url", "")
	v.SetDefault("child_rpc_url", "")
	v.SetDefault("private_key", "")
	v.SetDefault("stake_manager", DefaultStakeManager)
	v.SetDefault("staking_token", DefaultStakingToken)
	v.SetDefault("deposit_manager", DefaultDepositManager)
	v.SetDefault("gas_station_url", "")
	v.SetDefault("confirm_timeout", 120*time.Second)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("gas_safety_margin_wei", "10000000000000000")
	v.SetDefault("fee_ceiling_gwei", 500)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", false)
	v.SetDefault("metrics_addr", "")
}

// Load reads envFile (if it exists), STAKE_* environment variables and configFile (if set), in
// increasing order of precedence for the file and env over defaults.
func Load(v *viper.Viper, envFile, configFile string) (*Config, error) {
	if envFile != "" {
		// a missing .env is fine
		_ = godotenv.Load(envFile)
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.RootRPCURL) == "" {
		return errors.New("root_rpc_url is required")
	}
	for name, addr := range map[string]string{
		"stake_manager":   c.StakeManager,
		"staking_token":   c.StakingToken,
		"deposit_manager": c.DepositManager,
	} {
		if !common.IsHexAddress(addr) {
			return errors.Errorf("%s %q is not a hex address", name, addr)
		}
	}
	if _, err := c.GasSafetyMargin(); err != nil {
		return err
	}
	if c.ConfirmTimeout <= 0 {
		return errors.New("confirm_timeout must be positive")
	}
	return nil
}

func (c *Config) GasSafetyMargin() (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(c.GasSafetyMarginWei), 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("gas_safety_margin_wei %q is not a non-negative integer", c.GasSafetyMarginWei)
	}
	return v, nil
}

func (c *Config) StakeManagerAddress() common.Address   { return common.HexToAddress(c.StakeManager) }
func (c *Config) StakingTokenAddress() common.Address   { return common.HexToAddress(c.StakingToken) }
func (c *Config) DepositManagerAddress() common.Address { return common.HexToAddress(c.DepositManager) }
