package txsend

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakebridge/internal/chaintest"
	"stakebridge/internal/fee"
	"stakebridge/internal/metrics"
	"stakebridge/internal/network"
	"stakebridge/internal/signer"
	"stakebridge/internal/stakeerr"
)

var target = common.HexToAddress("0x00000000000000000000000000000000000000c7")

type fixedFees struct {
	quote *fee.Quote
	err   error
	calls int
}

func (f *fixedFees) RootFeeQuote(context.Context) (*fee.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fee.Quote{
		MaxFeePerGas:         new(big.Int).Set(f.quote.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(f.quote.MaxPriorityFeePerGas),
		Source:               f.quote.Source,
	}, nil
}

func newFees() *fixedFees {
	return &fixedFees{quote: &fee.Quote{
		MaxFeePerGas:         big.NewInt(22_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
		Source:               fee.SourceGasStation,
	}}
}

func newSender(t *testing.T, opts ...Option) (*chaintest.Env, *Sender, *fixedFees) {
	t.Helper()
	env := chaintest.NewEnv(t)
	sig, err := signer.New(env.Key, env.RootClient)
	require.NoError(t, err)
	fees := newFees()
	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	return env, New(env.Pair, network.Root, sig, fees, zerolog.Nop(), opts...), fees
}

func TestPrepare_GasBuffer(t *testing.T) {
	tests := []struct {
		kind CallKind
		want uint64
	}{
		{Ordinary, 120_000},
		{Approval, 150_000},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			env, s, _ := newSender(t)
			env.Root.GasEstimate = 100_000

			p, err := s.Prepare(context.Background(), Request{To: target, Data: []byte{1, 2, 3, 4}, Kind: tt.kind})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.GasLimit)
			assert.Equal(t, uint64(0), p.Nonce)
		})
	}
}

func TestPrepare_MaxCost(t *testing.T) {
	_, s, _ := newSender(t)
	p, err := s.Prepare(context.Background(), Request{To: target, Data: []byte{1}})
	require.NoError(t, err)

	// 120_000 gas * 22 gwei
	assert.Equal(t, "2640000000000000", p.MaxCost().String())
}

func TestPrepare_RejectsValueWithCalldata(t *testing.T) {
	env, s, fees := newSender(t)

	_, err := s.Prepare(context.Background(), Request{To: target, Data: []byte{1}, Value: big.NewInt(1)})
	require.Error(t, err)
	assert.Equal(t, stakeerr.InvalidAmount, stakeerr.KindOf(err))
	assert.Zero(t, env.Root.Calls("eth_estimateGas"))
	assert.Zero(t, fees.calls)
}

func TestPrepare_Failures(t *testing.T) {
	t.Run("estimate", func(t *testing.T) {
		env, s, _ := newSender(t)
		env.Root.EstimateErr = &chaintest.RevertError{Reason: "insufficient allowance"}
		_, err := s.Prepare(context.Background(), Request{To: target, Data: []byte{1}, Label: "buyVoucher"})
		require.Error(t, err)
		assert.True(t, network.IsRevert(err))
		assert.Contains(t, err.Error(), "estimate gas for buyVoucher")
	})
	t.Run("fees", func(t *testing.T) {
		_, s, fees := newSender(t)
		fees.err = stakeerr.New(stakeerr.FeeUnavailable, "down")
		_, err := s.Prepare(context.Background(), Request{To: target, Data: []byte{1}})
		assert.Equal(t, stakeerr.FeeUnavailable, stakeerr.KindOf(err))
	})
	t.Run("missing network", func(t *testing.T) {
		env := chaintest.NewEnv(t)
		sig, err := signer.New(env.Key, env.RootClient)
		require.NoError(t, err)
		s := New(network.NewPair(env.RootClient, nil), network.Child, sig, newFees(), zerolog.Nop())
		_, err = s.Prepare(context.Background(), Request{To: target, Data: []byte{1}})
		assert.Equal(t, stakeerr.NetworkUnavailable, stakeerr.KindOf(err))
	})
	t.Run("missing signer", func(t *testing.T) {
		env := chaintest.NewEnv(t)
		s := New(env.Pair, network.Root, nil, newFees(), zerolog.Nop())
		_, err := s.Prepare(context.Background(), Request{To: target, Data: []byte{1}})
		assert.Equal(t, stakeerr.MissingSigner, stakeerr.KindOf(err))
	})
}

func TestSend_BroadcastsSignedDynamicFeeTx(t *testing.T) {
	env, s, _ := newSender(t)
	ctx := context.Background()

	first, err := s.Send(ctx, Request{To: target, Data: []byte{0xaa}, Label: "buyVoucher"})
	require.NoError(t, err)
	second, err := s.Send(ctx, Request{To: target, Data: []byte{0xbb}, Label: "buyVoucher"})
	require.NoError(t, err)

	sent := env.Root.Sent()
	require.Len(t, sent, 2)
	tx := sent[0]
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, "22000000000", tx.GasFeeCap().String())
	assert.Equal(t, "2000000000", tx.GasTipCap().String())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, target, *tx.To())
	assert.Zero(t, tx.Value().Sign())
	assert.Equal(t, first.Hash, tx.Hash())

	assert.Equal(t, env.From, first.From)
	assert.Equal(t, uint64(0), first.Nonce)
	assert.Equal(t, uint64(1), second.Nonce)
	assert.Equal(t, network.Root, first.Network)
	assert.Empty(t, env.Child.Sent())
}

func TestSend_BroadcastFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	env, s, _ := newSender(t, WithMetrics(metrics.New(reg)))
	env.Root.SendErr = errors.New("replacement transaction underpriced")

	_, err := s.Send(context.Background(), Request{To: target, Data: []byte{1}, Label: "approve"})
	require.Error(t, err)
	assert.Equal(t, stakeerr.BroadcastFailed, stakeerr.KindOf(err))
	assert.Contains(t, err.Error(), "underpriced")

	expected := `
# HELP stakebridge_tx_broadcast_total Transactions submitted, by network, call kind and result.
# TYPE stakebridge_tx_broadcast_total counter
stakebridge_tx_broadcast_total{kind="approve",network="root",result="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "stakebridge_tx_broadcast_total"))
}

func TestAwaitConfirmation(t *testing.T) {
	env, s, _ := newSender(t)
	ctx := context.Background()
	env.Root.FailStatus[1] = types.ReceiptStatusFailed

	ok, err := s.Send(ctx, Request{To: target, Data: []byte{1}})
	require.NoError(t, err)
	rcpt, err := s.AwaitConfirmation(ctx, ok.Hash, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, rcpt.Status)

	failed, err := s.Send(ctx, Request{To: target, Data: []byte{2}})
	require.NoError(t, err)
	rcpt, err = s.AwaitConfirmation(ctx, failed.Hash, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusFailed, rcpt.Status)
}

func TestAwaitConfirmation_Timeout(t *testing.T) {
	env, s, _ := newSender(t)
	env.Root.Unmined[0] = true

	p, err := s.Send(context.Background(), Request{To: target, Data: []byte{1}})
	require.NoError(t, err)

	_, err = s.AwaitConfirmation(context.Background(), p.Hash, 30*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, stakeerr.ConfirmationTimeout, stakeerr.KindOf(err))
	assert.Greater(t, env.Root.Calls("eth_getTransactionReceipt"), 1)
}

func TestAwaitConfirmation_Cancelled(t *testing.T) {
	env, s, _ := newSender(t)
	env.Root.Unmined[0] = true
	p, err := s.Send(context.Background(), Request{To: target, Data: []byte{1}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.AwaitConfirmation(ctx, p.Hash, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
