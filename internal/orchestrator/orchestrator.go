// Package orchestrator exposes the staking, checkpoint and bridge operations over a root/child
// network pair and one signer.
package orchestrator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"stakebridge/internal/allowance"
	"stakebridge/internal/checkpoint"
	"stakebridge/internal/contracts"
	"stakebridge/internal/deposit"
	"stakebridge/internal/fee"
	"stakebridge/internal/metrics"
	"stakebridge/internal/network"
	"stakebridge/internal/signer"
	"stakebridge/internal/stakeerr"
	"stakebridge/internal/staking"
	"stakebridge/internal/txsend"
)

// Deps are the ready-made collaborators. Pair must have a root client; FeeSource and Metrics may
// be nil.
type Deps struct {
	Pair      *network.Pair
	Signer    signer.Signer
	FeeSource fee.Source
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
}

type Settings struct {
	StakeManager    common.Address
	StakingToken    common.Address
	DepositManager  common.Address
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
	GasSafetyMargin *big.Int
	FeeCeilingGwei  uint64
}

// Orchestrator holds no mutable state besides its collaborators. At most one write operation per
// signer may be in flight: nonces are read from the chain without reservation.
type Orchestrator struct {
	pair       *network.Pair
	caller     *contracts.Caller
	fees       *fee.Estimator
	sender     *txsend.Sender
	staking    *staking.Service
	checkpoint *checkpoint.Verifier
	deposit    *deposit.Client
	settings   Settings
	log        zerolog.Logger
}

// New wires the components. Missing signer or root client is a configuration error.
func New(deps Deps, s Settings) (*Orchestrator, error) {
	if deps.Pair == nil {
		return nil, stakeerr.New(stakeerr.NetworkUnavailable, "no network pair")
	}
	root, err := deps.Pair.Client(network.Root)
	if err != nil {
		return nil, err
	}
	if deps.Signer == nil {
		return nil, stakeerr.New(stakeerr.MissingSigner, "no signer configured")
	}
	if s.ConfirmTimeout <= 0 {
		s.ConfirmTimeout = allowance.DefaultTimeout
	}

	feeOpts := []fee.Option{fee.WithMetrics(deps.Metrics)}
	if s.FeeCeilingGwei > 0 {
		feeOpts = append(feeOpts, fee.WithCeilingGwei(s.FeeCeilingGwei))
	}
	fees := fee.NewEstimator(deps.FeeSource, root, deps.Log, feeOpts...)
	sender := txsend.New(deps.Pair, network.Root, deps.Signer, fees, deps.Log,
		txsend.WithPollInterval(s.PollInterval), txsend.WithMetrics(deps.Metrics))
	caller := contracts.NewCaller(deps.Pair, network.Root)
	resolver := contracts.NewResolver(caller, s.StakeManager, s.DepositManager)
	allow := allowance.New(caller, sender, s.ConfirmTimeout, deps.Log)

	return &Orchestrator{
		pair:   deps.Pair,
		caller: caller,
		fees:   fees,
		sender: sender,
		staking: staking.New(deps.Pair, resolver, caller, sender, allow, staking.Config{
			StakingToken:    s.StakingToken,
			GasSafetyMargin: s.GasSafetyMargin,
			RestakeTimeout:  s.ConfirmTimeout,
		}, deps.Log),
		checkpoint: checkpoint.New(resolver, caller, deps.Log),
		deposit:    deposit.NewClient(s.DepositManager, sender, allow, deps.Log),
		settings:   s,
		log:        deps.Log,
	}, nil
}

// Address is the signer's account.
func (o *Orchestrator) Address() common.Address { return o.sender.From() }

func (o *Orchestrator) ValidatorInfo(ctx context.Context, validatorID uint64) (*staking.ValidatorInfo, error) {
	return o.staking.ValidatorInfo(ctx, validatorID)
}

// DelegatorInfo returns found=false for a delegator the share contract does not know.
func (o *Orchestrator) DelegatorInfo(ctx context.Context, validatorID uint64, delegator common.Address) (*staking.DelegatorInfo, bool, error) {
	return o.staking.DelegatorInfo(ctx, validatorID, delegator)
}

func (o *Orchestrator) Delegate(ctx context.Context, validatorID uint64, amount *big.Int) (*network.PendingTransaction, error) {
	return o.staking.Delegate(ctx, validatorID, amount)
}

func (o *Orchestrator) Undelegate(ctx context.Context, validatorID uint64, amount *big.Int) (*network.PendingTransaction, error) {
	return o.staking.Undelegate(ctx, validatorID, amount)
}

func (o *Orchestrator) WithdrawRewards(ctx context.Context, validatorID uint64) (*network.PendingTransaction, error) {
	return o.staking.WithdrawRewards(ctx, validatorID)
}

func (o *Orchestrator) RestakeRewards(ctx context.Context, validatorID uint64) (*staking.RestakeResult, error) {
	return o.staking.RestakeRewards(ctx, validatorID)
}

func (o *Orchestrator) MaticToShares(ctx context.Context, validatorID uint64, amount *big.Int) (*big.Int, error) {
	return o.staking.MaticToShares(ctx, validatorID, amount)
}

func (o *Orchestrator) LastCheckpointedBlock(ctx context.Context) (uint64, error) {
	return o.checkpoint.LastCheckpointedBlock(ctx)
}

func (o *Orchestrator) IsCheckpointed(ctx context.Context, childBlock uint64) (bool, error) {
	return o.checkpoint.IsCheckpointed(ctx, childBlock)
}

func (o *Orchestrator) BridgeDeposit(ctx context.Context, p *deposit.Params) (*deposit.Result, error) {
	return o.deposit.Deposit(ctx, p)
}

func (o *Orchestrator) RootFeeQuote(ctx context.Context) (*fee.Quote, error) {
	return o.fees.RootFeeQuote(ctx)
}

// AwaitConfirmation blocks until hash is mined on the root network or timeout passes.
func (o *Orchestrator) AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout <= 0 {
		timeout = o.settings.ConfirmTimeout
	}
	return o.sender.AwaitConfirmation(ctx, hash, timeout)
}

// StakingTokenBalance is the ERC-20 balance of owner in the staking token on the root network.
func (o *Orchestrator) StakingTokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return o.caller.BalanceOf(ctx, o.settings.StakingToken, owner)
}

func (o *Orchestrator) NativeBalance(ctx context.Context, net network.Network, addr common.Address) (*big.Int, error) {
	return o.pair.Balance(ctx, addr, net)
}

func (o *Orchestrator) BlockNumber(ctx context.Context, net network.Network) (uint64, error) {
	return o.pair.BlockNumber(ctx, net)
}
