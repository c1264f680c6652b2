package main

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var unitDecimals = []struct {
	suffix   string
	decimals int
}{
	{"ether", 18},
	{"eth", 18},
	{"gwei", 9},
	{"wei", 0},
}

// parseAmount parses "1000", "10ether", "2.5eth" or "30gwei" into smallest units. A bare number is
// wei. Fractions finer than the unit allows are rejected rather than truncated.
func parseAmount(s string) (*big.Int, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	decimals := 0
	for _, u := range unitDecimals {
		if strings.HasSuffix(in, u.suffix) {
			decimals = u.decimals
			in = strings.TrimSpace(strings.TrimSuffix(in, u.suffix))
			break
		}
	}
	if in == "" {
		return nil, errors.Errorf("invalid amount %q", s)
	}

	whole, frac, hasFrac := strings.Cut(in, ".")
	if hasFrac && len(frac) > decimals {
		return nil, errors.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// formatUnits renders v with the given decimals, trimming trailing zeros.
func formatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	s := new(big.Int).Abs(v).String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if v.Sign() < 0 {
		out = "-" + out
	}
	return out
}

func parseValidatorID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "validator id %q", s)
	}
	return id, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("%q is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}
