package staking

import (
	"context"
	"math/big"

	"stakebridge/internal/stakeerr"
)

// LegacyValidatorCutoff: validators with ids below it use the legacy share precision.
const LegacyValidatorCutoff = 8

var (
	legacyPrecision = big.NewInt(100)
	sharePrecision  = new(big.Int).Exp(big.NewInt(10), big.NewInt(29), nil)
)

// Precision returns the exchange-rate precision of a validator's share contract. The early
// validators were deployed with 100, later ones with 1e29.
func Precision(validatorID uint64) *big.Int {
	if validatorID < LegacyValidatorCutoff {
		return new(big.Int).Set(legacyPrecision)
	}
	return new(big.Int).Set(sharePrecision)
}

// SharesFor computes floor(amount * precision / exchangeRate).
func SharesFor(validatorID uint64, amount, exchangeRate *big.Int) (*big.Int, error) {
	if exchangeRate == nil || exchangeRate.Sign() <= 0 {
		return nil, stakeerr.New(stakeerr.InvalidExchangeRate, "exchange rate %v", exchangeRate).WithValidator(validatorID)
	}
	shares := new(big.Int).Mul(amount, Precision(validatorID))
	return shares.Quo(shares, exchangeRate), nil
}

// MaticToShares converts a token amount into the validator's shares at the current exchange rate.
func (s *Service) MaticToShares(ctx context.Context, validatorID uint64, amount *big.Int) (*big.Int, error) {
	if err := checkValidator(validatorID); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
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
	return SharesFor(validatorID, amount, rate)
}

// maxSharesToBurn allows 0.1% exchange-rate drift plus one unit of rounding.
func maxSharesToBurn(shares *big.Int) *big.Int {
	m := new(big.Int).Mul(shares, big.NewInt(1001))
	m.Quo(m, big.NewInt(1000))
	return m.Add(m, big.NewInt(1))
}
