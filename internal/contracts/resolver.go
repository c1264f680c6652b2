package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakebridge/internal/network"
	"stakebridge/internal/stakeerr"
)

// Resolver discovers per-validator and checkpoint contracts from the root registries. Nothing is
// cached; every operation resolves again.
type Resolver struct {
	caller         *Caller
	stakeManager   common.Address
	depositManager common.Address
}

func NewResolver(caller *Caller, stakeManager, depositManager common.Address) *Resolver {
	return &Resolver{caller: caller, stakeManager: stakeManager, depositManager: depositManager}
}

func (r *Resolver) StakeManager() common.Address   { return r.stakeManager }
func (r *Resolver) DepositManager() common.Address { return r.depositManager }

// ValidatorContract returns the validator's share contract. A zero address or a revert means the
// validator does not exist.
func (r *Resolver) ValidatorContract(ctx context.Context, validatorID uint64) (common.Address, error) {
	addr, err := r.caller.callAddress(ctx, r.stakeManager, StakeManagerABI, "getValidatorContract", new(big.Int).SetUint64(validatorID))
	if err != nil {
		if network.IsRevert(err) {
			return common.Address{}, stakeerr.Wrap(err, stakeerr.ValidatorNotFound, "registry rejected lookup").
				WithValidator(validatorID).WithContract(r.stakeManager)
		}
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, stakeerr.New(stakeerr.ValidatorNotFound, "no share contract registered").
			WithValidator(validatorID).WithContract(r.stakeManager)
	}
	return addr, nil
}

// CheckpointRegistry returns the checkpoint manager the deposit manager points at. It never falls
// back to a default address.
func (r *Resolver) CheckpointRegistry(ctx context.Context) (common.Address, error) {
	addr, err := r.caller.callAddress(ctx, r.depositManager, DepositManagerABI, "checkpointManagerAddress")
	if err != nil {
		return common.Address{}, stakeerr.Wrap(err, stakeerr.CheckpointRegistryUnavailable, "read checkpoint manager address").
			WithContract(r.depositManager)
	}
	if addr == (common.Address{}) {
		return common.Address{}, stakeerr.New(stakeerr.CheckpointRegistryUnavailable, "checkpoint manager address is zero").
			WithContract(r.depositManager)
	}
	return addr, nil
}
