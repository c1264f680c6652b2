package chaintest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"stakebridge/internal/network"
)

// Env is a root/child pair of fake chains and a funded account on the root chain.
type Env struct {
	Root  *Backend
	Child *Backend
	Pair  *network.Pair

	RootClient  *network.Client
	ChildClient *network.Client

	Key  *ecdsa.PrivateKey
	From common.Address
}

func NewEnv(t testing.TB) *Env {
	t.Helper()
	root, child := NewBackend(), NewBackend()
	root.ChainIDValue = big.NewInt(1)
	child.ChainIDValue = big.NewInt(137)

	ctx := context.Background()
	rc, err := network.NewClient(ctx, network.Root, root)
	require.NoError(t, err)
	cc, err := network.NewClient(ctx, network.Child, child)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	root.Balances[from] = new(big.Int).Mul(big.NewInt(10), big.NewInt(params.Ether))

	return &Env{
		Root:        root,
		Child:       child,
		Pair:        network.NewPair(rc, cc),
		RootClient:  rc,
		ChildClient: cc,
		Key:         key,
		From:        from,
	}
}

// Token is an ERC-20 on a fake chain whose approve transactions update the allowance table.
type Token struct {
	Address common.Address

	mu         sync.Mutex
	allowances map[[2]common.Address]*big.Int
	balances   map[common.Address]*big.Int
}

// NewToken registers allowance, balanceOf and approve for an ERC-20 at addr. erc20 must contain
// those three methods.
func NewToken(b *Backend, addr common.Address, erc20 abi.ABI) *Token {
	tok := &Token{
		Address:    addr,
		allowances: map[[2]common.Address]*big.Int{},
		balances:   map[common.Address]*big.Int{},
	}
	b.Handle(addr, erc20, "allowance", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		return []interface{}{tok.Allowance(args[0].(common.Address), args[1].(common.Address))}, nil
	})
	b.Handle(addr, erc20, "balanceOf", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		return []interface{}{tok.Balance(args[0].(common.Address))}, nil
	})
	b.OnSend(func(tx *types.Transaction, m *abi.Method, args []interface{}) {
		if tx.To() == nil || *tx.To() != addr || m == nil || m.Name != "approve" {
			return
		}
		owner, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		if err != nil {
			return
		}
		tok.SetAllowance(owner, args[0].(common.Address), args[1].(*big.Int))
	})
	return tok
}

func (t *Token) SetAllowance(owner, spender common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(v)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.allowances[[2]common.Address{owner, spender}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *Token) SetBalance(owner common.Address, v *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = new(big.Int).Set(v)
}

func (t *Token) Balance(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.balances[owner]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}
