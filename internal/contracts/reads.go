package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"stakebridge/internal/stakeerr"
)

// ValidatorRecord is the registry's validator struct, normalized at this boundary.
type ValidatorRecord struct {
	Amount            *big.Int
	Reward            *big.Int
	ActivationEpoch   *big.Int
	DeactivationEpoch *big.Int
	JailTime          *big.Int
	Signer            common.Address
	ContractAddress   common.Address
	Status            uint8
	CommissionRate    *big.Int
	LastCommissionUpd *big.Int
	DelegatedAmount   *big.Int
}

// HeaderBlock is one committed checkpoint.
type HeaderBlock struct {
	Root      [32]byte
	Start     *big.Int
	End       *big.Int
	CreatedAt *big.Int
	Proposer  common.Address
}

func (c *Caller) Validator(ctx context.Context, stakeManager common.Address, validatorID uint64) (*ValidatorRecord, error) {
	const method = "validators"
	out, err := c.Call(ctx, common.Address{}, stakeManager, StakeManagerABI, method, new(big.Int).SetUint64(validatorID))
	if err != nil {
		return nil, err
	}
	m := StakeManagerABI.Methods[method]
	rec := &ValidatorRecord{
		Amount:            bigOrZero(field(m, out, "amount", 0)),
		Reward:            bigOrZero(field(m, out, "reward", 1)),
		ActivationEpoch:   bigOrZero(field(m, out, "activationEpoch", 2)),
		DeactivationEpoch: bigOrZero(field(m, out, "deactivationEpoch", 3)),
		JailTime:          bigOrZero(field(m, out, "jailTime", 4)),
		CommissionRate:    bigOrZero(field(m, out, "commissionRate", 8)),
		LastCommissionUpd: bigOrZero(field(m, out, "lastCommissionUpdate", 9)),
		DelegatedAmount:   bigOrZero(field(m, out, "delegatedAmount", 11)),
	}
	if a, ok := field(m, out, "signer", 5).(common.Address); ok {
		rec.Signer = a
	}
	if a, ok := field(m, out, "contractAddress", 6).(common.Address); ok {
		rec.ContractAddress = a
	}
	if s, ok := asBig(field(m, out, "status", 7)); ok {
		rec.Status = uint8(s.Uint64())
	}
	return rec, nil
}

func (c *Caller) ValidatorStake(ctx context.Context, stakeManager common.Address, validatorID uint64) (*big.Int, error) {
	return c.callBig(ctx, common.Address{}, stakeManager, StakeManagerABI, "validatorStake", new(big.Int).SetUint64(validatorID))
}

func (c *Caller) DelegatedAmount(ctx context.Context, stakeManager common.Address, validatorID uint64) (*big.Int, error) {
	return c.callBig(ctx, common.Address{}, stakeManager, StakeManagerABI, "delegatedAmount", new(big.Int).SetUint64(validatorID))
}

func (c *Caller) ExchangeRate(ctx context.Context, validatorContract common.Address) (*big.Int, error) {
	return c.callBig(ctx, common.Address{}, validatorContract, ValidatorShareABI, "exchangeRate")
}

// TotalStake returns the delegator's stake in token units (the first getTotalStake output).
func (c *Caller) TotalStake(ctx context.Context, validatorContract, delegator common.Address) (*big.Int, error) {
	return c.callBig(ctx, delegator, validatorContract, ValidatorShareABI, "getTotalStake", delegator)
}

func (c *Caller) LiquidRewards(ctx context.Context, validatorContract, delegator common.Address) (*big.Int, error) {
	return c.callBig(ctx, delegator, validatorContract, ValidatorShareABI, "getLiquidRewards", delegator)
}

func (c *Caller) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callBig(ctx, owner, token, ERC20ABI, "allowance", owner, spender)
}

func (c *Caller) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.callBig(ctx, owner, token, ERC20ABI, "balanceOf", owner)
}

func (c *Caller) CurrentHeaderBlock(ctx context.Context, registry common.Address) (*big.Int, error) {
	v, err := c.callBig(ctx, common.Address{}, registry, CheckpointRegistryABI, "currentHeaderBlock")
	if err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.CheckpointDataUnavailable, "read current header block").WithContract(registry)
	}
	return v, nil
}

// HeaderBlock reads a checkpoint record. The end block is required; the rest is best effort.
func (c *Caller) HeaderBlock(ctx context.Context, registry common.Address, index *big.Int) (*HeaderBlock, error) {
	const method = "headerBlocks"
	out, err := c.Call(ctx, common.Address{}, registry, CheckpointRegistryABI, method, index)
	if err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.CheckpointDataUnavailable, "read header block %s", index).WithContract(registry)
	}
	return decodeHeaderBlock(out, registry, index)
}

func decodeHeaderBlock(out []interface{}, registry common.Address, index *big.Int) (*HeaderBlock, error) {
	m := CheckpointRegistryABI.Methods["headerBlocks"]
	end, ok := asBig(field(m, out, "end", 2))
	if !ok {
		return nil, stakeerr.Wrap(errors.Errorf("no end field in %v", out), stakeerr.CheckpointDataUnavailable,
			"header block %s", index).WithContract(registry)
	}
	hb := &HeaderBlock{
		End:       end,
		Start:     bigOrZero(field(m, out, "start", 1)),
		CreatedAt: bigOrZero(field(m, out, "createdAt", 3)),
	}
	if r, ok := field(m, out, "root", 0).([32]byte); ok {
		hb.Root = r
	}
	if p, ok := field(m, out, "proposer", 4).(common.Address); ok {
		hb.Proposer = p
	}
	return hb, nil
}

func bigOrZero(v interface{}) *big.Int {
	if b, ok := asBig(v); ok {
		return b
	}
	return new(big.Int)
}
