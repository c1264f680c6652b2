package allowance

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakebridge/internal/chaintest"
	"stakebridge/internal/contracts"
	"stakebridge/internal/fee"
	"stakebridge/internal/network"
	"stakebridge/internal/signer"
	"stakebridge/internal/stakeerr"
	"stakebridge/internal/txsend"
)

var (
	tokenAddr = common.HexToAddress("0x7D1AfA7B718fb893dB30A3aBc0Cfc608AaCfeBB0")
	spender   = common.HexToAddress("0x00000000000000000000000000000000000000c7")
)

type fixture struct {
	env   *chaintest.Env
	token *chaintest.Token
	mgr   *Manager
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	env := chaintest.NewEnv(t)
	tok := chaintest.NewToken(env.Root, tokenAddr, contracts.ERC20ABI)
	sig, err := signer.New(env.Key, env.RootClient)
	require.NoError(t, err)
	fees := fee.NewEstimator(nil, env.RootClient, zerolog.Nop())
	sender := txsend.New(env.Pair, network.Root, sig, fees, zerolog.Nop(), txsend.WithPollInterval(5*time.Millisecond))
	mgr := New(contracts.NewCaller(env.Pair, network.Root), sender, timeout, zerolog.Nop())
	return &fixture{env: env, token: tok, mgr: mgr}
}

// approvals decodes every approve sent to the token, in order.
func (f *fixture) approvals(t *testing.T) []*big.Int {
	t.Helper()
	var out []*big.Int
	for _, tx := range f.env.Root.Sent() {
		m, args, err := f.env.Root.Decode(tx)
		require.NoError(t, err)
		require.Equal(t, "approve", m.Name)
		assert.Equal(t, spender, args[0])
		out = append(out, args[1].(*big.Int))
	}
	return out
}

func TestEnsure_SufficientAllowanceSendsNothing(t *testing.T) {
	f := newFixture(t, time.Second)
	f.token.SetAllowance(f.env.From, spender, big.NewInt(1_000))

	hash, err := f.mgr.Ensure(context.Background(), tokenAddr, f.env.From, spender, big.NewInt(1_000))
	require.NoError(t, err)
	assert.Nil(t, hash)
	assert.Empty(t, f.env.Root.Sent())
}

func TestEnsure_ZeroAllowanceApprovesUnlimitedOnce(t *testing.T) {
	f := newFixture(t, time.Second)

	hash, err := f.mgr.Ensure(context.Background(), tokenAddr, f.env.From, spender, big.NewInt(5))
	require.NoError(t, err)
	require.NotNil(t, hash)

	approvals := f.approvals(t)
	require.Len(t, approvals, 1)
	assert.Zero(t, approvals[0].Cmp(Unlimited))
	assert.Equal(t, *hash, f.env.Root.Sent()[0].Hash())
	assert.Equal(t, uint64(150_000), f.env.Root.Sent()[0].Gas())
}

func TestEnsure_ResetsBeforeRaising(t *testing.T) {
	f := newFixture(t, time.Second)
	f.token.SetAllowance(f.env.From, spender, big.NewInt(3))

	_, err := f.mgr.Ensure(context.Background(), tokenAddr, f.env.From, spender, big.NewInt(10))
	require.NoError(t, err)

	approvals := f.approvals(t)
	require.Len(t, approvals, 2)
	assert.Zero(t, approvals[0].Sign())
	assert.Zero(t, approvals[1].Cmp(Unlimited))

	sent := f.env.Root.Sent()
	assert.Equal(t, uint64(0), sent[0].Nonce())
	assert.Equal(t, uint64(1), sent[1].Nonce())
}

func TestEnsure_Idempotent(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	_, err := f.mgr.Ensure(ctx, tokenAddr, f.env.From, spender, big.NewInt(10))
	require.NoError(t, err)
	hash, err := f.mgr.Ensure(ctx, tokenAddr, f.env.From, spender, big.NewInt(10))
	require.NoError(t, err)
	assert.Nil(t, hash)
	assert.Len(t, f.env.Root.Sent(), 1)
}

func TestEnsure_RevertedApproval(t *testing.T) {
	f := newFixture(t, time.Second)
	f.env.Root.FailStatus[0] = types.ReceiptStatusFailed

	_, err := f.mgr.Ensure(context.Background(), tokenAddr, f.env.From, spender, big.NewInt(10))
	require.Error(t, err)
	assert.Equal(t, stakeerr.ApprovalFailed, stakeerr.KindOf(err))
}

func TestEnsure_RevertedResetStopsSequence(t *testing.T) {
	f := newFixture(t, time.Second)
	f.token.SetAllowance(f.env.From, spender, big.NewInt(3))
	f.env.Root.FailStatus[0] = types.ReceiptStatusFailed

	_, err := f.mgr.Ensure(context.Background(), tokenAddr, f.env.From, spender, big.NewInt(10))
	assert.Equal(t, stakeerr.ApprovalFailed, stakeerr.KindOf(err))
	assert.Len(t, f.env.Root.Sent(), 1)
}

func TestEnsure_ApprovalTimeout(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.env.Root.Unmined[0] = true

	_, err := f.mgr.Ensure(context.Background(), tokenAddr, f.env.From, spender, big.NewInt(10))
	require.Error(t, err)
	assert.Equal(t, stakeerr.ApprovalTimeout, stakeerr.KindOf(err))
	assert.ErrorIs(t, err, stakeerr.ConfirmationTimeout)
}

func TestEnsure_AllowanceReadFailure(t *testing.T) {
	env := chaintest.NewEnv(t)
	sig, err := signer.New(env.Key, env.RootClient)
	require.NoError(t, err)
	sender := txsend.New(env.Pair, network.Root, sig, fee.NewEstimator(nil, env.RootClient, zerolog.Nop()), zerolog.Nop())
	mgr := New(contracts.NewCaller(env.Pair, network.Root), sender, 0, zerolog.Nop())

	_, err = mgr.Ensure(context.Background(), tokenAddr, env.From, spender, big.NewInt(1))
	require.Error(t, err)
	assert.Empty(t, env.Root.Sent())
	assert.Equal(t, DefaultTimeout, mgr.timeout)
}

func TestUnlimited(t *testing.T) {
	assert.Equal(t, 256, Unlimited.BitLen())
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", Unlimited.String())
}
