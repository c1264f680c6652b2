package orchestrator

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakebridge/internal/chaintest"
	"stakebridge/internal/config"
	"stakebridge/internal/contracts"
	"stakebridge/internal/deposit"
	"stakebridge/internal/metrics"
	"stakebridge/internal/network"
	"stakebridge/internal/signer"
	"stakebridge/internal/stakeerr"
)

var (
	stakeManager   = common.HexToAddress(config.DefaultStakeManager)
	stakingToken   = common.HexToAddress(config.DefaultStakingToken)
	depositManager = common.HexToAddress(config.DefaultDepositManager)
	registry       = common.HexToAddress("0x86E4Dc95c7FBdBf52e33D563BbDB00823894C287")
	shareContract  = common.HexToAddress("0x00000000000000000000000000000000000000c7")
)

func newOrchestrator(t *testing.T) (*chaintest.Env, *chaintest.Token, *Orchestrator) {
	t.Helper()
	env := chaintest.NewEnv(t)
	tok := chaintest.NewToken(env.Root, stakingToken, contracts.ERC20ABI)

	env.Root.Handle(stakeManager, contracts.StakeManagerABI, "getValidatorContract", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		if args[0].(*big.Int).Uint64() == 7 {
			return []interface{}{shareContract}, nil
		}
		return []interface{}{common.Address{}}, nil
	})
	env.Root.Handle(shareContract, contracts.ValidatorShareABI, "exchangeRate", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(100)}, nil
	})
	env.Root.Handle(depositManager, contracts.DepositManagerABI, "checkpointManagerAddress", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{registry}, nil
	})
	env.Root.Handle(registry, contracts.CheckpointRegistryABI, "currentHeaderBlock", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(10_000)}, nil
	})
	env.Root.Handle(registry, contracts.CheckpointRegistryABI, "headerBlocks", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{[32]byte{}, big.NewInt(1), big.NewInt(1_000), big.NewInt(0), common.Address{}}, nil
	})

	sig, err := signer.New(env.Key, env.RootClient)
	require.NoError(t, err)
	o, err := New(Deps{
		Pair:    env.Pair,
		Signer:  sig,
		Metrics: metrics.New(prometheus.NewRegistry()),
		Log:     zerolog.Nop(),
	}, Settings{
		StakeManager:   stakeManager,
		StakingToken:   stakingToken,
		DepositManager: depositManager,
		ConfirmTimeout: time.Second,
		PollInterval:   5 * time.Millisecond,
	})
	require.NoError(t, err)
	return env, tok, o
}

func TestNew_ConfigurationErrors(t *testing.T) {
	env := chaintest.NewEnv(t)
	sig, err := signer.New(env.Key, env.RootClient)
	require.NoError(t, err)

	_, err = New(Deps{Pair: env.Pair}, Settings{})
	assert.Equal(t, stakeerr.MissingSigner, stakeerr.KindOf(err))

	_, err = New(Deps{Pair: network.NewPair(nil, env.ChildClient), Signer: sig}, Settings{})
	assert.Equal(t, stakeerr.NetworkUnavailable, stakeerr.KindOf(err))

	_, err = New(Deps{Signer: sig}, Settings{})
	assert.Equal(t, stakeerr.NetworkUnavailable, stakeerr.KindOf(err))
}

func TestOrchestrator_DelegateAndUndelegate(t *testing.T) {
	env, tok, o := newOrchestrator(t)
	ctx := context.Background()
	amount := new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18))

	p, err := o.Delegate(ctx, 7, amount)
	require.NoError(t, err)
	assert.Equal(t, shareContract, *p.To)
	assert.Zero(t, tok.Allowance(env.From, shareContract).Cmp(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))))

	shares, err := o.MaticToShares(ctx, 7, amount)
	require.NoError(t, err)
	assert.Equal(t, amount.String(), shares.String())

	_, err = o.Undelegate(ctx, 7, amount)
	require.NoError(t, err)
	assert.Len(t, env.Root.Sent(), 3)

	_, err = o.Delegate(ctx, 99, amount)
	assert.Equal(t, stakeerr.ValidatorNotFound, stakeerr.KindOf(err))
}

func TestOrchestrator_Checkpoint(t *testing.T) {
	_, _, o := newOrchestrator(t)
	ctx := context.Background()

	last, err := o.LastCheckpointedBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), last)

	ok, err := o.IsCheckpointed(ctx, 999)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = o.IsCheckpointed(ctx, 1_001)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrchestrator_BridgeDepositAndConfirm(t *testing.T) {
	env, _, o := newOrchestrator(t)
	ctx := context.Background()

	res, err := o.BridgeDeposit(ctx, &deposit.Params{Token: stakingToken.Hex(), Amount: big.NewInt(1_000)})
	require.NoError(t, err)
	require.NotNil(t, res.Approval)

	rcpt, err := o.AwaitConfirmation(ctx, res.Deposit.Hash, 0)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, rcpt.Status)
	assert.Equal(t, env.From, res.Deposit.From)
}

func TestOrchestrator_Balances(t *testing.T) {
	env, tok, o := newOrchestrator(t)
	ctx := context.Background()
	tok.SetBalance(env.From, big.NewInt(777))
	env.Child.Balances[env.From] = big.NewInt(5)

	bal, err := o.StakingTokenBalance(ctx, o.Address())
	require.NoError(t, err)
	assert.Equal(t, "777", bal.String())

	native, err := o.NativeBalance(ctx, network.Child, env.From)
	require.NoError(t, err)
	assert.Equal(t, "5", native.String())

	head, err := o.BlockNumber(ctx, network.Root)
	require.NoError(t, err)
	assert.Equal(t, env.Root.Head, head)
}

func TestOrchestrator_FeeQuote(t *testing.T) {
	_, _, o := newOrchestrator(t)
	q, err := o.RootFeeQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "21000000000", q.MaxFeePerGas.String())
	assert.Equal(t, "1000000000", q.MaxPriorityFeePerGas.String())
}
