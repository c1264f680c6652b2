package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"stakebridge/internal/network"
)

// ErrNoCode is returned when a call to a method with outputs comes back empty, which is what a
// call to an address without code looks like.
var ErrNoCode = errors.New("empty call result")

// Caller performs read-only contract calls on one network of the pair.
type Caller struct {
	pair *network.Pair
	net  network.Network
}

func NewCaller(pair *network.Pair, net network.Network) *Caller {
	return &Caller{pair: pair, net: net}
}

// Call packs method with args, runs eth_call against to and unpacks the outputs positionally.
// Revert errors keep their type so network.IsRevert can classify them.
func (c *Caller) Call(ctx context.Context, from, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}
	out, err := c.pair.Call(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, c.net)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s on %s", method, to.Hex())
	}
	m := contract.Methods[method]
	if len(out) == 0 && len(m.Outputs) > 0 {
		return nil, errors.Wrapf(ErrNoCode, "call %s on %s", method, to.Hex())
	}
	vals, err := contract.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return vals, nil
}

func (c *Caller) callBig(ctx context.Context, from, to common.Address, contract abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.Call(ctx, from, to, contract, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := asBig(field(contract.Methods[method], out, "", 0))
	if !ok {
		return nil, errors.Errorf("%s: unexpected result %v", method, out)
	}
	return v, nil
}

func (c *Caller) callAddress(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (common.Address, error) {
	out, err := c.Call(ctx, common.Address{}, to, contract, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := field(contract.Methods[method], out, "", 0).(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("%s: unexpected result %v", method, out)
	}
	return addr, nil
}

// field picks an output by name when the ABI names it, falling back to position. It returns nil
// when neither resolves.
func field(m abi.Method, out []interface{}, name string, pos int) interface{} {
	if name != "" {
		for i, arg := range m.Outputs {
			if arg.Name == name && i < len(out) {
				return out[i]
			}
		}
	}
	if pos >= 0 && pos < len(out) {
		return out[pos]
	}
	return nil
}

func asBig(v interface{}) (*big.Int, bool) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, false
		}
		return new(big.Int).Set(x), true
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint64:
		return new(big.Int).SetUint64(x), true
	default:
		return nil, false
	}
}
