package staking

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"stakebridge/internal/network"
)

// ValidatorStatus mirrors the registry's status enum.
type ValidatorStatus uint8

const (
	Inactive ValidatorStatus = iota
	Active
	Unbonding
	Jailed
)

func (s ValidatorStatus) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Unbonding:
		return "unbonding"
	case Jailed:
		return "jailed"
	default:
		return "unknown"
	}
}

// ValidatorInfo is a point-in-time snapshot; it is never cached.
type ValidatorInfo struct {
	ID                 uint64
	Status             ValidatorStatus
	TotalStake         *big.Int
	SelfStake          *big.Int
	DelegatedStake     *big.Int
	CommissionPercent  float64
	Signer             common.Address
	ContractAddress    common.Address
	ActivationEpoch    *big.Int
	DeactivationEpoch  *big.Int
	JailEndEpoch       *big.Int
	LastRewardUpdate   *big.Int
	LastCommissionEdit *big.Int
}

// DelegatorInfo is one delegator's position with one validator.
type DelegatorInfo struct {
	ValidatorID    uint64
	Delegator      common.Address
	Delegated      *big.Int
	PendingRewards *big.Int
}

// ValidatorInfo reads the registry record, stake totals and share contract concurrently.
func (s *Service) ValidatorInfo(ctx context.Context, validatorID uint64) (*ValidatorInfo, error) {
	if err := checkValidator(validatorID); err != nil {
		return nil, err
	}
	stakeManager := s.resolver.StakeManager()
	info := &ValidatorInfo{ID: validatorID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vc, err := s.resolver.ValidatorContract(gctx, validatorID)
		info.ContractAddress = vc
		return err
	})
	g.Go(func() error {
		rec, err := s.caller.Validator(gctx, stakeManager, validatorID)
		if err != nil {
			return err
		}
		info.Status = ValidatorStatus(rec.Status)
		info.Signer = rec.Signer
		info.CommissionPercent = basisPointsToPercent(rec.CommissionRate)
		info.ActivationEpoch = rec.ActivationEpoch
		info.DeactivationEpoch = rec.DeactivationEpoch
		info.JailEndEpoch = rec.JailTime
		// the registry does not expose a reward-update epoch
		info.LastRewardUpdate = new(big.Int)
		info.LastCommissionEdit = rec.LastCommissionUpd
		return nil
	})
	g.Go(func() error {
		v, err := s.caller.ValidatorStake(gctx, stakeManager, validatorID)
		info.SelfStake = v
		return err
	})
	g.Go(func() error {
		v, err := s.caller.DelegatedAmount(gctx, stakeManager, validatorID)
		info.DelegatedStake = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	info.TotalStake = new(big.Int).Add(info.SelfStake, info.DelegatedStake)
	return info, nil
}

func basisPointsToPercent(bp *big.Int) float64 {
	if bp == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(bp), big.NewFloat(100)).Float64()
	return f
}

// DelegatorInfo returns found=false when the share contract reverts the stake read, which is how
// it reports an unknown delegator. A zero stake that reads successfully is a valid record.
// Transport errors are returned as errors.
func (s *Service) DelegatorInfo(ctx context.Context, validatorID uint64, delegator common.Address) (*DelegatorInfo, bool, error) {
	if err := checkValidator(validatorID); err != nil {
		return nil, false, err
	}
	vc, err := s.resolver.ValidatorContract(ctx, validatorID)
	if err != nil {
		return nil, false, err
	}
	delegated, err := s.caller.TotalStake(ctx, vc, delegator)
	if err != nil {
		if network.IsRevert(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	rewards, err := s.caller.LiquidRewards(ctx, vc, delegator)
	if err != nil {
		if network.IsRevert(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &DelegatorInfo{
		ValidatorID:    validatorID,
		Delegator:      delegator,
		Delegated:      delegated,
		PendingRewards: rewards,
	}, true, nil
}
