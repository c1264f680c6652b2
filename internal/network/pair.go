package network

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"stakebridge/internal/stakeerr"
)

// PendingTransaction describes a transaction at the moment it was broadcast.
type PendingTransaction struct {
	Hash    common.Hash
	From    common.Address
	To      *common.Address
	Value   *big.Int
	ChainID *big.Int
	Nonce   uint64
	Gas     uint64
	Data    []byte
	Network Network
}

// Pair holds the root and child clients. Either may be nil; addressing a nil member fails with
// stakeerr.NetworkUnavailable. No method retries.
type Pair struct {
	root  *Client
	child *Client
}

func NewPair(root, child *Client) *Pair {
	return &Pair{root: root, child: child}
}

// Client returns the member addressed by net.
func (p *Pair) Client(net Network) (*Client, error) {
	var c *Client
	switch net {
	case Root:
		c = p.root
	case Child:
		c = p.child
	}
	if c == nil {
		return nil, stakeerr.New(stakeerr.NetworkUnavailable, "%s network client not initialized", net)
	}
	return c, nil
}

func (p *Pair) BlockNumber(ctx context.Context, net Network) (uint64, error) {
	c, err := p.Client(net)
	if err != nil {
		return 0, err
	}
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "%s block number", net)
	}
	return n, nil
}

func (p *Pair) Balance(ctx context.Context, addr common.Address, net Network) (*big.Int, error) {
	c, err := p.Client(net)
	if err != nil {
		return nil, err
	}
	bal, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s balance of %s", net, addr.Hex())
	}
	return bal, nil
}

// Transaction returns nil without error when the node does not know hash.
func (p *Pair) Transaction(ctx context.Context, hash common.Hash, net Network) (*types.Transaction, error) {
	c, err := p.Client(net)
	if err != nil {
		return nil, err
	}
	tx, _, err := c.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s transaction %s", net, hash.Hex())
	}
	return tx, nil
}

// Receipt returns nil without error while the transaction is not yet mined.
func (p *Pair) Receipt(ctx context.Context, hash common.Hash, net Network) (*types.Receipt, error) {
	c, err := p.Client(net)
	if err != nil {
		return nil, err
	}
	rcpt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s receipt %s", net, hash.Hex())
	}
	return rcpt, nil
}

// BlockByNumber returns the latest block when number is nil, and nil when the block is unknown.
func (p *Pair) BlockByNumber(ctx context.Context, number *big.Int, net Network) (*types.Block, error) {
	c, err := p.Client(net)
	if err != nil {
		return nil, err
	}
	b, err := c.backend.BlockByNumber(ctx, number)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s block %v", net, number)
	}
	return b, nil
}

func (p *Pair) BlockByHash(ctx context.Context, hash common.Hash, net Network) (*types.Block, error) {
	c, err := p.Client(net)
	if err != nil {
		return nil, err
	}
	b, err := c.backend.BlockByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s block %s", net, hash.Hex())
	}
	return b, nil
}

// Call executes a read-only eth_call against the latest block. Reverts are returned unwrapped so
// IsRevert can inspect them.
func (p *Pair) Call(ctx context.Context, msg ethereum.CallMsg, net Network) ([]byte, error) {
	c, err := p.Client(net)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BroadcastRaw decodes a signed, binary-encoded transaction and submits it.
func (p *Pair) BroadcastRaw(ctx context.Context, raw []byte, net Network) (*PendingTransaction, error) {
	c, err := p.Client(net)
	if err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.BroadcastFailed, "decode raw transaction")
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.BroadcastFailed, "send %s transaction %s", net, tx.Hash().Hex())
	}
	return Pending(tx, net)
}

// Pending builds the broadcast record for a signed transaction.
func Pending(tx *types.Transaction, net Network) (*PendingTransaction, error) {
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, errors.Wrap(err, "recover sender")
	}
	return &PendingTransaction{
		Hash:    tx.Hash(),
		From:    from,
		To:      tx.To(),
		Value:   tx.Value(),
		ChainID: tx.ChainId(),
		Nonce:   tx.Nonce(),
		Gas:     tx.Gas(),
		Data:    tx.Data(),
		Network: net,
	}, nil
}
