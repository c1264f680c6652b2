package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stakebridge/internal/config"
	"stakebridge/internal/logger"
	"stakebridge/internal/metrics"
	"stakebridge/internal/orchestrator"
)

// app carries per-invocation state from the root command's pre-run to the subcommands.
type app struct {
	v       *viper.Viper
	envFile string
	cfgFile string
	jsonOut bool

	cfg   *config.Config
	log   zerolog.Logger
	orch  *orchestrator.Orchestrator
	close func()
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "stakectl",
		Short: "Delegate, undelegate and bridge on a root/child staking network pair",
		Long: `stakectl drives the stake manager and deposit manager contracts on the root chain and
checks checkpoint inclusion of child chain blocks.

Settings come from STAKE_* environment variables, an optional .env file and an optional
config file. STAKE_ROOT_RPC_URL and STAKE_PRIVATE_KEY are required.

Examples:
  stakectl validator 7
  stakectl delegate 7 10ether
  stakectl undelegate 7 2.5ether
  stakectl restake 7 --wait
  stakectl is-checkpointed 51234567
  stakectl bridge 0xTokenAddress 100ether --to 0xRecipient`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.close != nil {
				a.close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.Bool("log-console", false, "human readable logs on stderr")
	pf.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9102")
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log_console", pf.Lookup("log-console"))
	_ = a.v.BindPFlag("metrics_addr", pf.Lookup("metrics-addr"))

	root.AddCommand(
		newValidatorCmd(a),
		newDelegatorCmd(a),
		newDelegateCmd(a),
		newUndelegateCmd(a),
		newWithdrawRewardsCmd(a),
		newRestakeCmd(a),
		newCheckpointCmd(a),
		newIsCheckpointedCmd(a),
		newBridgeCmd(a),
		newFeeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.envFile, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logger.New(logger.Config{Level: cfg.LogLevel, Console: cfg.LogConsole, Writer: os.Stderr})

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		a.serveMetrics(cfg.MetricsAddr, reg)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	orch, closeFn, err := orchestrator.Open(ctx, cfg, a.log, m)
	if err != nil {
		return err
	}
	a.orch, a.close = orch, closeFn
	return nil
}

func (a *app) serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}

// print writes v as indented JSON with --json, or the plain text form otherwise.
func (a *app) print(cmd *cobra.Command, v interface{}, text string) error {
	if a.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
