package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"stakebridge/internal/config"
	"stakebridge/internal/fee"
	"stakebridge/internal/metrics"
	"stakebridge/internal/network"
	"stakebridge/internal/signer"
)

// Open dials both networks from cfg and builds an orchestrator. The child client is optional;
// operations addressing it fail with NetworkUnavailable when child_rpc_url is empty. Close the
// returned pair's clients with the returned func.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*Orchestrator, func(), error) {
	root, err := network.Dial(ctx, network.Root, cfg.RootRPCURL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){root.Close}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var child *network.Client
	if cfg.ChildRPCURL != "" {
		child, err = network.Dial(ctx, network.Child, cfg.ChildRPCURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, child.Close)
	}

	sig, err := signer.FromHex(cfg.PrivateKey, root)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	margin, err := cfg.GasSafetyMargin()
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	var source fee.Source
	if cfg.GasStationURL != "" {
		source = fee.NewGasStation(cfg.GasStationURL, 0)
	}

	o, err := New(Deps{
		Pair:      network.NewPair(root, child),
		Signer:    sig,
		FeeSource: source,
		Metrics:   m,
		Log:       log,
	}, Settings{
		StakeManager:    cfg.StakeManagerAddress(),
		StakingToken:    cfg.StakingTokenAddress(),
		DepositManager:  cfg.DepositManagerAddress(),
		ConfirmTimeout:  cfg.ConfirmTimeout,
		PollInterval:    cfg.PollInterval,
		GasSafetyMargin: margin,
		FeeCeilingGwei:  cfg.FeeCeilingGwei,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return o, closeAll, nil
}
