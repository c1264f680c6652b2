// Package network wraps the root (L1) and child (L2) chain RPC clients behind one interface.
package network

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// Network selects which chain of the pair an operation addresses.
type Network int

const (
	Root Network = iota
	Child
)

func (n Network) String() string {
	switch n {
	case Root:
		return "root"
	case Child:
		return "child"
	default:
		return "unknown"
	}
}

// Backend is the subset of *ethclient.Client used by the orchestrator.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// Client is one member of the pair: a backend bound to a known chain id.
type Client struct {
	backend Backend
	network Network
	chainID *big.Int
}

// Dial connects to rpcURL and reads the chain id once.
func Dial(ctx context.Context, net Network, rpcURL string) (*Client, error) {
	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s rpc", net)
	}
	c, err := NewClient(ctx, net, cli)
	if err != nil {
		cli.Close()
		return nil, err
	}
	return c, nil
}

// NewClient binds an existing backend to net.
func NewClient(ctx context.Context, net Network, backend Backend) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s chain id", net)
	}
	return &Client{backend: backend, network: net, chainID: chainID}, nil
}

func (c *Client) Network() Network { return c.network }

// Backend returns the underlying RPC backend.
func (c *Client) Backend() Backend { return c.backend }

func (c *Client) Close() { c.backend.Close() }

// ChainID returns the chain id read at construction.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }
