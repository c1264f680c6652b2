// Package staking implements delegation lifecycle operations against a validator's share contract.
package staking

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"

	"stakebridge/internal/allowance"
	"stakebridge/internal/contracts"
	"stakebridge/internal/logger"
	"stakebridge/internal/network"
	"stakebridge/internal/stakeerr"
	"stakebridge/internal/txsend"
)

// DefaultGasSafetyMargin is added to the estimated gas cost in the pre-flight funds check.
var DefaultGasSafetyMargin = new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(100))

// DefaultRestakeTimeout bounds the wait for the withdrawal leg of a restake.
const DefaultRestakeTimeout = 120 * time.Second

type Config struct {
	// StakingToken is the ERC-20 delegated to validators.
	StakingToken    common.Address
	GasSafetyMargin *big.Int
	RestakeTimeout  time.Duration
}

type Service struct {
	pair      *network.Pair
	resolver  *contracts.Resolver
	caller    *contracts.Caller
	sender    *txsend.Sender
	allowance *allowance.Manager
	cfg       Config
	log       zerolog.Logger
}

func New(pair *network.Pair, resolver *contracts.Resolver, caller *contracts.Caller, sender *txsend.Sender,
	allow *allowance.Manager, cfg Config, log zerolog.Logger) *Service {
	if cfg.GasSafetyMargin == nil {
		cfg.GasSafetyMargin = new(big.Int).Set(DefaultGasSafetyMargin)
	}
	if cfg.RestakeTimeout <= 0 {
		cfg.RestakeTimeout = DefaultRestakeTimeout
	}
	return &Service{
		pair:      pair,
		resolver:  resolver,
		caller:    caller,
		sender:    sender,
		allowance: allow,
		cfg:       cfg,
		log:       logger.Component(log, "staking"),
	}
}

// RestakeResult reports the two legs of a restake. NoOp is set, and both legs are nil, when there
// were no rewards to restake.
type RestakeResult struct {
	NoOp     bool
	Amount   *big.Int
	Withdraw *network.PendingTransaction
	Delegate *network.PendingTransaction
}

func checkValidator(id uint64) error {
	if id == 0 {
		return stakeerr.New(stakeerr.InvalidValidatorID, "validator id must be positive")
	}
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return stakeerr.New(stakeerr.InvalidAmount, "amount must be > 0").WithAmount(amount)
	}
	return nil
}

// Delegate buys shares of validatorID worth amount tokens.
func (s *Service) Delegate(ctx context.Context, validatorID uint64, amount *big.Int) (*network.PendingTransaction, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if err := checkValidator(validatorID); err != nil {
		return nil, err
	}
	vc, err := s.resolver.ValidatorContract(ctx, validatorID)
	if err != nil {
		return nil, err
	}
	return s.delegateTo(ctx, validatorID, vc, amount)
}

func (s *Service) delegateTo(ctx context.Context, validatorID uint64, vc common.Address, amount *big.Int) (*network.PendingTransaction, error) {
	if _, err := s.allowance.Ensure(ctx, s.cfg.StakingToken, s.sender.From(), vc, amount); err != nil {
		return nil, err
	}

	data, err := contracts.ValidatorShareABI.Pack("buyVoucher", amount, new(big.Int))
	if err != nil {
		return nil, err
	}
	p, err := s.sender.Prepare(ctx, txsend.Request{To: vc, Data: data, Label: "buyVoucher"})
	if err != nil {
		return nil, err
	}
	if err := s.checkGasFunds(ctx, p, validatorID); err != nil {
		return nil, err
	}
	return s.sender.Submit(ctx, p)
}

// checkGasFunds fails fast when the wallet cannot pay the worst-case gas plus the safety margin.
func (s *Service) checkGasFunds(ctx context.Context, p *txsend.Prepared, validatorID uint64) error {
	bal, err := s.pair.Balance(ctx, s.sender.From(), network.Root)
	if err != nil {
		return err
	}
	need := new(big.Int).Add(p.MaxCost(), s.cfg.GasSafetyMargin)
	if bal.Cmp(need) < 0 {
		return stakeerr.New(stakeerr.InsufficientGasFunds, "balance %s below estimated gas cost plus margin %s", bal, need).
			WithValidator(validatorID).WithContract(p.To).WithAmount(need)
	}
	return nil
}

// Undelegate sells enough shares to claim amount tokens. The share bound tolerates 0.1% rate drift.
func (s *Service) Undelegate(ctx context.Context, validatorID uint64, amount *big.Int) (*network.PendingTransaction, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if err := checkValidator(validatorID); err != nil {
		return nil, err
	}
	vc, err := s.resolver.ValidatorContract(ctx, validatorID)
	if err != nil {
		return nil, err
	}
	rate, err := s.caller.ExchangeRate(ctx, vc)
	if err != nil {
		return nil, err
	}
	shares, err := SharesFor(validatorID, amount, rate)
	if err != nil {
		return nil, err
	}
	data, err := contracts.ValidatorShareABI.Pack("sellVoucher_new", amount, maxSharesToBurn(shares))
	if err != nil {
		return nil, err
	}
	return s.sender.Send(ctx, txsend.Request{To: vc, Data: data, Label: "sellVoucher_new"})
}

// WithdrawRewards claims the caller's liquid rewards from validatorID.
func (s *Service) WithdrawRewards(ctx context.Context, validatorID uint64) (*network.PendingTransaction, error) {
	if err := checkValidator(validatorID); err != nil {
		return nil, err
	}
	vc, err := s.resolver.ValidatorContract(ctx, validatorID)
	if err != nil {
		return nil, err
	}
	return s.withdrawFrom(ctx, vc)
}

func (s *Service) withdrawFrom(ctx context.Context, vc common.Address) (*network.PendingTransaction, error) {
	data, err := contracts.ValidatorShareABI.Pack("withdrawRewards")
	if err != nil {
		return nil, err
	}
	return s.sender.Send(ctx, txsend.Request{To: vc, Data: data, Label: "withdrawRewards"})
}

// RestakeRewards withdraws pending rewards, waits for the withdrawal to confirm, and delegates
// exactly the amount that was pending before the withdrawal.
func (s *Service) RestakeRewards(ctx context.Context, validatorID uint64) (*RestakeResult, error) {
	if err := checkValidator(validatorID); err != nil {
		return nil, err
	}
	vc, err := s.resolver.ValidatorContract(ctx, validatorID)
	if err != nil {
		return nil, err
	}
	pendingRewards, err := s.caller.LiquidRewards(ctx, vc, s.sender.From())
	if err != nil {
		return nil, err
	}
	if pendingRewards.Sign() <= 0 {
		s.log.Info().Uint64("validator", validatorID).Msg("no rewards to restake")
		return &RestakeResult{NoOp: true, Amount: new(big.Int)}, nil
	}

	withdraw, err := s.withdrawFrom(ctx, vc)
	if err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.RestakeFailed, "withdraw leg").WithValidator(validatorID).WithAmount(pendingRewards)
	}
	rcpt, err := s.sender.AwaitConfirmation(ctx, withdraw.Hash, s.cfg.RestakeTimeout)
	if err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.RestakeFailed, "withdrawal %s not confirmed", withdraw.Hash.Hex()).
			WithValidator(validatorID).WithAmount(pendingRewards)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, stakeerr.New(stakeerr.RestakeFailed, "withdrawal %s reverted", withdraw.Hash.Hex()).
			WithValidator(validatorID).WithAmount(pendingRewards)
	}

	delegate, err := s.delegateTo(ctx, validatorID, vc, pendingRewards)
	if err != nil {
		return &RestakeResult{Amount: pendingRewards, Withdraw: withdraw}, err
	}
	return &RestakeResult{Amount: pendingRewards, Withdraw: withdraw, Delegate: delegate}, nil
}
