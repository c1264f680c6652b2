// Package fee derives EIP-1559 fee quotes for root-network transactions.
package fee

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"

	"stakebridge/internal/logger"
	"stakebridge/internal/metrics"
	"stakebridge/internal/network"
	"stakebridge/internal/stakeerr"
)

// DefaultCeilingGwei is the max fee above which a quote is logged as anomalous.
const DefaultCeilingGwei = 500

const (
	SourceGasStation = "gas_station"
	SourceProvider   = "provider"
	SourceLegacy     = "provider_legacy"
	SourceFallback   = "gas_station_fallback"
)

// Quote is a per-transaction fee pair. MaxFeePerGas >= MaxPriorityFeePerGas.
type Quote struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Source               string
}

// Estimator produces root-network fee quotes from the gas station first and the node second.
type Estimator struct {
	source  Source
	client  *network.Client
	ceiling *big.Int
	log     zerolog.Logger
	metrics *metrics.Metrics
}

type Option func(*Estimator)

// WithCeilingGwei overrides the anomaly ceiling.
func WithCeilingGwei(gwei uint64) Option {
	return func(e *Estimator) {
		e.ceiling = new(big.Int).Mul(new(big.Int).SetUint64(gwei), big.NewInt(params.GWei))
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Estimator) { e.metrics = m }
}

// NewEstimator creates an estimator. source may be nil, in which case only the node is asked.
func NewEstimator(source Source, root *network.Client, log zerolog.Logger, opts ...Option) *Estimator {
	e := &Estimator{
		source:  source,
		client:  root,
		ceiling: new(big.Int).Mul(big.NewInt(DefaultCeilingGwei), big.NewInt(params.GWei)),
		log:     logger.Component(log, "fee"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RootFeeQuote derives a fresh quote. It never caches: every transaction asks again.
func (e *Estimator) RootFeeQuote(ctx context.Context) (*Quote, error) {
	var station *GasQuote
	if e.source != nil {
		q, err := e.source.Quote(ctx)
		if err != nil {
			e.log.Debug().Err(err).Msg("gas station unavailable, asking provider")
		} else {
			station = q
			base, tip := toBig(q.EstimatedBaseFee), q.priority()
			if base != nil && tip != nil {
				return e.finish(&Quote{
					MaxFeePerGas:         new(big.Int).Add(base, tip),
					MaxPriorityFeePerGas: tip,
					Source:               SourceGasStation,
				}), nil
			}
			e.log.Debug().Msg("gas station quote incomplete, asking provider")
		}
	}

	q, err := e.providerQuote(ctx)
	if err == nil {
		return e.finish(q), nil
	}
	if station != nil && station.FallbackGasPrice != nil {
		gp := toBig(station.FallbackGasPrice)
		return e.finish(&Quote{MaxFeePerGas: gp, MaxPriorityFeePerGas: new(big.Int).Set(gp), Source: SourceFallback}), nil
	}
	return nil, err
}

// providerQuote mirrors eth fee-data: maxFee = 2*baseFee + tip, or the legacy gas price for both
// fields when the node has no EIP-1559 data.
func (e *Estimator) providerQuote(ctx context.Context) (*Quote, error) {
	if e.client == nil {
		return nil, stakeerr.New(stakeerr.FeeUnavailable, "no gas station quote and no root client")
	}
	backend := e.client.Backend()

	tip, tipErr := backend.SuggestGasTipCap(ctx)
	if tipErr == nil {
		h, herr := backend.HeaderByNumber(ctx, nil)
		if herr == nil && h != nil && h.BaseFee != nil {
			maxFee := new(big.Int).Mul(h.BaseFee, big.NewInt(2))
			maxFee.Add(maxFee, tip)
			return &Quote{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip, Source: SourceProvider}, nil
		}
	}

	gp, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.FeeUnavailable, "no fee data from gas station or provider")
	}
	return &Quote{MaxFeePerGas: gp, MaxPriorityFeePerGas: new(big.Int).Set(gp), Source: SourceLegacy}, nil
}

func (e *Estimator) finish(q *Quote) *Quote {
	if q.MaxFeePerGas.Cmp(q.MaxPriorityFeePerGas) < 0 {
		q.MaxFeePerGas = new(big.Int).Set(q.MaxPriorityFeePerGas)
	}
	if q.MaxFeePerGas.Cmp(e.ceiling) > 0 {
		e.metrics.FeeAnomaly()
		e.log.Warn().
			Str("max_fee", q.MaxFeePerGas.String()).
			Str("ceiling", e.ceiling.String()).
			Str("source", q.Source).
			Msg("max fee per gas above sanity ceiling")
	}
	e.metrics.FeeQuote(q.Source)
	return q
}
