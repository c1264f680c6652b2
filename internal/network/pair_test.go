package network_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakebridge/internal/chaintest"
	"stakebridge/internal/network"
	"stakebridge/internal/stakeerr"
)

func signedTransfer(t *testing.T, env *chaintest.Env, nonce uint64) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x00000000000000000000000000000000000000b0")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   env.RootClient.ChainID(),
		Nonce:     nonce,
		To:        &to,
		Value:     big.NewInt(1),
		Gas:       21_000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(env.RootClient.ChainID()), env.Key)
	require.NoError(t, err)
	return signed
}

func TestPair_MissingMember(t *testing.T) {
	env := chaintest.NewEnv(t)
	p := network.NewPair(env.RootClient, nil)

	_, err := p.BlockNumber(context.Background(), network.Child)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stakeerr.NetworkUnavailable))

	n, err := p.BlockNumber(context.Background(), network.Root)
	require.NoError(t, err)
	assert.Equal(t, env.Root.Head, n)
}

func TestPair_RoutesByNetwork(t *testing.T) {
	env := chaintest.NewEnv(t)
	env.Child.Head = 5_000
	ctx := context.Background()

	root, err := env.Pair.BlockNumber(ctx, network.Root)
	require.NoError(t, err)
	child, err := env.Pair.BlockNumber(ctx, network.Child)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), root)
	assert.Equal(t, uint64(5_000), child)

	bal, err := env.Pair.Balance(ctx, env.From, network.Child)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}

func TestPair_UnknownLookupsAreNil(t *testing.T) {
	env := chaintest.NewEnv(t)
	ctx := context.Background()
	hash := common.HexToHash("0x01")

	rcpt, err := env.Pair.Receipt(ctx, hash, network.Root)
	require.NoError(t, err)
	assert.Nil(t, rcpt)

	tx, err := env.Pair.Transaction(ctx, hash, network.Root)
	require.NoError(t, err)
	assert.Nil(t, tx)

	blk, err := env.Pair.BlockByNumber(ctx, big.NewInt(1_000_000), network.Root)
	require.NoError(t, err)
	assert.Nil(t, blk)

	blk, err = env.Pair.BlockByNumber(ctx, nil, network.Root)
	require.NoError(t, err)
	require.NotNil(t, blk)
	assert.Equal(t, env.Root.Head, blk.NumberU64())
}

func TestPair_BroadcastRaw(t *testing.T) {
	env := chaintest.NewEnv(t)
	ctx := context.Background()
	tx := signedTransfer(t, env, 0)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	pending, err := env.Pair.BroadcastRaw(ctx, raw, network.Root)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), pending.Hash)
	assert.Equal(t, env.From, pending.From)
	assert.Equal(t, network.Root, pending.Network)
	assert.Len(t, env.Root.Sent(), 1)
	assert.Empty(t, env.Child.Sent())

	rcpt, err := env.Pair.Receipt(ctx, tx.Hash(), network.Root)
	require.NoError(t, err)
	require.NotNil(t, rcpt)
	assert.Equal(t, types.ReceiptStatusSuccessful, rcpt.Status)
}

func TestPair_BroadcastRawFailures(t *testing.T) {
	env := chaintest.NewEnv(t)
	ctx := context.Background()

	_, err := env.Pair.BroadcastRaw(ctx, []byte{0x02, 0xff}, network.Root)
	assert.True(t, errors.Is(err, stakeerr.BroadcastFailed))

	env.Root.SendErr = errors.New("nonce too low")
	raw, err := signedTransfer(t, env, 0).MarshalBinary()
	require.NoError(t, err)
	_, err = env.Pair.BroadcastRaw(ctx, raw, network.Root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stakeerr.BroadcastFailed))
	assert.Contains(t, err.Error(), "nonce too low")
}

func TestPending_RecoversSender(t *testing.T) {
	env := chaintest.NewEnv(t)
	tx := signedTransfer(t, env, 3)

	p, err := network.Pending(tx, network.Root)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(env.Key.PublicKey), p.From)
	assert.Equal(t, uint64(3), p.Nonce)
	assert.Equal(t, big.NewInt(1), p.ChainID)
}

func TestIsRevert(t *testing.T) {
	assert.False(t, network.IsRevert(nil))
	assert.False(t, network.IsRevert(errors.New("connection refused")))
	assert.True(t, network.IsRevert(&chaintest.RevertError{Reason: "no validator"}))
	assert.True(t, network.IsRevert(errors.New("VM Exception: execution reverted")))
}

func TestNetwork_String(t *testing.T) {
	assert.Equal(t, "root", network.Root.String())
	assert.Equal(t, "child", network.Child.String())
}
