// Package txsend builds, signs and broadcasts contract calls, and waits for receipts on request.
package txsend

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"stakebridge/internal/fee"
	"stakebridge/internal/logger"
	"stakebridge/internal/metrics"
	"stakebridge/internal/network"
	"stakebridge/internal/signer"
	"stakebridge/internal/stakeerr"
)

// CallKind selects the gas safety buffer.
type CallKind int

const (
	Ordinary CallKind = iota
	Approval
)

func (k CallKind) String() string {
	if k == Approval {
		return "approval"
	}
	return "call"
}

// bufferPercent is applied to the node's gas estimate.
func (k CallKind) bufferPercent() uint64 {
	if k == Approval {
		return 150
	}
	return 120
}

// FeeQuoter supplies a fresh fee quote per transaction.
type FeeQuoter interface {
	RootFeeQuote(ctx context.Context) (*fee.Quote, error)
}

// Request is one contract call to send. Value is for native transfers only and must stay nil
// when Data carries a call.
type Request struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	Kind  CallKind
	// Label names the call in logs and metrics, e.g. "buyVoucher".
	Label string
}

// Prepared is a request with gas, fees and nonce attached, ready to sign.
type Prepared struct {
	Request
	GasLimit uint64
	Fee      *fee.Quote
	Nonce    uint64
}

// MaxCost is the most the transaction can charge the sender: gas * maxFee + value.
func (p *Prepared) MaxCost() *big.Int {
	c := new(big.Int).Mul(new(big.Int).SetUint64(p.GasLimit), p.Fee.MaxFeePerGas)
	if p.Value != nil {
		c.Add(c, p.Value)
	}
	return c
}

// Sender submits transactions for one signer on one network. It never retries a broadcast.
type Sender struct {
	pair         *network.Pair
	net          network.Network
	signer       signer.Signer
	fees         FeeQuoter
	pollInterval time.Duration
	log          zerolog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Sender)

// WithPollInterval sets how often AwaitConfirmation asks for a receipt.
func WithPollInterval(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sender) { s.metrics = m }
}

func New(pair *network.Pair, net network.Network, sig signer.Signer, fees FeeQuoter, log zerolog.Logger, opts ...Option) *Sender {
	s := &Sender{
		pair:         pair,
		net:          net,
		signer:       sig,
		fees:         fees,
		pollInterval: 2 * time.Second,
		log:          logger.Component(log, "txsend"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// From is the sending account.
func (s *Sender) From() common.Address { return s.signer.Address() }

// Prepare estimates gas without fee fields, applies the buffer, then attaches a fee quote and the
// current pending nonce.
func (s *Sender) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if s.signer == nil {
		return nil, stakeerr.New(stakeerr.MissingSigner, "no signer configured")
	}
	if req.Value != nil && req.Value.Sign() != 0 && len(req.Data) > 0 {
		return nil, stakeerr.New(stakeerr.InvalidAmount, "native value attached to contract call %s", req.Label).WithContract(req.To)
	}
	if _, err := s.pair.Client(s.net); err != nil {
		return nil, err
	}

	to := req.To
	est, err := s.signer.EstimateGas(ctx, ethereum.CallMsg{To: &to, Data: req.Data, Value: req.Value})
	if err != nil {
		return nil, errors.Wrapf(err, "estimate gas for %s", req.Label)
	}
	gasLimit := est * req.Kind.bufferPercent() / 100

	quote, err := s.fees.RootFeeQuote(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := s.signer.Nonce(ctx)
	if err != nil {
		return nil, err
	}
	return &Prepared{Request: req, GasLimit: gasLimit, Fee: quote, Nonce: nonce}, nil
}

// Submit signs p and broadcasts it, returning as soon as the node accepts it.
func (s *Sender) Submit(ctx context.Context, p *Prepared) (*network.PendingTransaction, error) {
	to := p.To
	value := p.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.signer.ChainID(),
		Nonce:     p.Nonce,
		To:        &to,
		Value:     value,
		Data:      p.Data,
		Gas:       p.GasLimit,
		GasTipCap: p.Fee.MaxPriorityFeePerGas,
		GasFeeCap: p.Fee.MaxFeePerGas,
	})
	signed, err := s.signer.SignTx(tx)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encode signed tx")
	}

	pending, err := s.pair.BroadcastRaw(ctx, raw, s.net)
	s.metrics.Broadcast(s.net.String(), p.Label, err)
	if err != nil {
		s.log.Error().Err(err).Str("call", p.Label).Str("to", to.Hex()).Uint64("nonce", p.Nonce).Msg("broadcast failed")
		if stakeerr.KindOf(err) == stakeerr.BroadcastFailed {
			return nil, err
		}
		return nil, stakeerr.Wrap(err, stakeerr.BroadcastFailed, "%s", p.Label).WithContract(to)
	}
	s.log.Info().
		Str("tx", pending.Hash.Hex()).
		Str("call", p.Label).
		Str("to", to.Hex()).
		Uint64("nonce", p.Nonce).
		Uint64("gas", p.GasLimit).
		Str("max_fee", p.Fee.MaxFeePerGas.String()).
		Msg("transaction broadcast")
	return pending, nil
}

// Send is Prepare followed by Submit.
func (s *Sender) Send(ctx context.Context, req Request) (*network.PendingTransaction, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, p)
}
