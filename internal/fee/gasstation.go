package fee

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
)

// Tier is one speed level of a gas-price service response.
type Tier struct {
	MaxPriorityFeePerGas *math.HexOrDecimal256 `json:"maxPriorityFeePerGas"`
}

// GasQuote is the gas-price service response. Any field may be null.
type GasQuote struct {
	EstimatedBaseFee *math.HexOrDecimal256 `json:"estimatedBaseFee"`
	SafeLow          *Tier                 `json:"safeLow"`
	Average          *Tier                 `json:"average"`
	Fast             *Tier                 `json:"fast"`
	FallbackGasPrice *math.HexOrDecimal256 `json:"fallbackGasPrice"`
}

// Source is an external fee-quote provider.
type Source interface {
	Quote(ctx context.Context) (*GasQuote, error)
}

// GasStation fetches quotes over HTTP GET from a JSON endpoint.
type GasStation struct {
	url  string
	http *http.Client
}

func NewGasStation(url string, timeout time.Duration) *GasStation {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GasStation{url: url, http: &http.Client{Timeout: timeout}}
}

func (g *GasStation) Quote(ctx context.Context) (*GasQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build gas station request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "gas station http")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read gas station response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("gas station status %d: %s", resp.StatusCode, string(body))
	}
	var q GasQuote
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, errors.Wrap(err, "decode gas station response")
	}
	return &q, nil
}

func toBig(v *math.HexOrDecimal256) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(v))
}

// priority returns the average tier's priority fee, or nil when absent.
func (q *GasQuote) priority() *big.Int {
	if q == nil || q.Average == nil {
		return nil
	}
	return toBig(q.Average.MaxPriorityFeePerGas)
}
