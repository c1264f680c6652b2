package main

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1000", "1000"},
		{"10ether", "10000000000000000000"},
		{"2.5eth", "2500000000000000000"},
		{" 30gwei ", "30000000000"},
		{"0.000000000000000001ether", "1"},
		{".5ether", "500000000000000000"},
		{"7wei", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", "ether", "-1", "1.5", "0.0000000000000000001ether", "abc", "1.2.3eth"} {
		_, err := parseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestFormatUnits(t *testing.T) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	assert.Equal(t, "1", formatUnits(one, 18))
	assert.Equal(t, "0.000000000000000001", formatUnits(big.NewInt(1), 18))
	assert.Equal(t, "2.5", formatUnits(big.NewInt(2_500_000_000), 9))
	assert.Equal(t, "0", formatUnits(nil, 18))
	assert.Equal(t, "42", formatUnits(big.NewInt(42), 0))
}

func TestParseValidatorID(t *testing.T) {
	id, err := parseValidatorID("137")
	require.NoError(t, err)
	assert.Equal(t, uint64(137), id)

	_, err = parseValidatorID("-1")
	assert.Error(t, err)
}
