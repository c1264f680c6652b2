// Package chaintest provides an in-memory network.Backend for package tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallHandler answers an eth_call to a decoded method. It returns the method outputs in ABI order.
type CallHandler func(from common.Address, args []interface{}) ([]interface{}, error)

// SendHook observes a broadcast transaction after it is mined.
type SendHook func(tx *types.Transaction, method *abi.Method, args []interface{})

type route struct {
	abi     abi.ABI
	methods map[string]CallHandler
}

// RevertError mimics the JSON-RPC error returned for a reverted call.
type RevertError struct{ Reason string }

func (e *RevertError) Error() string          { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int         { return 3 }
func (e *RevertError) ErrorData() interface{} { return "0x" }

// Backend is a fake chain. Transactions are mined on send; receipts report Status unless
// overridden per hash. All methods are safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Head         uint64
	BaseFee      *big.Int
	TipCap       *big.Int
	GasPrice     *big.Int
	GasEstimate  uint64
	Balances     map[common.Address]*big.Int
	Nonces       map[common.Address]uint64

	// Status is the receipt status given to mined transactions.
	Status uint64
	// Unmined marks the Nth broadcast (0-based) as never getting a receipt.
	Unmined map[int]bool
	// FailStatus overrides the receipt status for the Nth broadcast (0-based).
	FailStatus map[int]uint64

	EstimateErr error
	SendErr     error
	TipErr      error
	HeaderErr   error
	PriceErr    error

	routes   map[common.Address]*route
	hooks    []SendHook
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	calls    map[string]int
}

func NewBackend() *Backend {
	return &Backend{
		ChainIDValue: big.NewInt(1),
		Head:         100,
		BaseFee:      big.NewInt(10_000_000_000),
		TipCap:       big.NewInt(1_000_000_000),
		GasPrice:     big.NewInt(12_000_000_000),
		GasEstimate:  100_000,
		Balances:     map[common.Address]*big.Int{},
		Nonces:       map[common.Address]uint64{},
		Status:       types.ReceiptStatusSuccessful,
		Unmined:      map[int]bool{},
		FailStatus:   map[int]uint64{},
		routes:       map[common.Address]*route{},
		receipts:     map[common.Hash]*types.Receipt{},
		calls:        map[string]int{},
	}
}

// Handle registers a call handler for method of the contract at addr.
func (b *Backend) Handle(addr common.Address, contractABI abi.ABI, method string, h CallHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.routes[addr]
	if !ok {
		r = &route{abi: contractABI, methods: map[string]CallHandler{}}
		b.routes[addr] = r
	}
	r.methods[method] = h
}

// OnSend registers a hook run for every mined transaction whose target has a registered ABI.
func (b *Backend) OnSend(h SendHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

// Sent returns the broadcast transactions in order.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Calls returns how many times an RPC method was invoked; "" returns the total.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if method != "" {
		return b.calls[method]
	}
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// Decode returns the method and arguments of a transaction sent to a registered contract.
func (b *Backend) Decode(tx *types.Transaction) (*abi.Method, []interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tx.To() == nil {
		return nil, nil, fmt.Errorf("contract creation")
	}
	return b.decodeLocked(*tx.To(), tx.Data())
}

func (b *Backend) decodeLocked(to common.Address, data []byte) (*abi.Method, []interface{}, error) {
	r, ok := b.routes[to]
	if !ok {
		return nil, nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("short calldata")
	}
	m, err := r.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return m, args, nil
}

func (b *Backend) count(method string) {
	b.calls[method]++
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_chainId")
	return new(big.Int).Set(b.ChainIDValue), nil
}

func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_blockNumber")
	return b.Head, nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getBalance")
	if bal, ok := b.Balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (b *Backend) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getTransactionByHash")
	for _, tx := range b.sent {
		if tx.Hash() == hash {
			_, mined := b.receipts[hash]
			return tx, !mined, nil
		}
	}
	return nil, false, ethereum.NotFound
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getTransactionReceipt")
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) header() *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(b.Head), BaseFee: b.BaseFee}
}

func (b *Backend) BlockByNumber(_ context.Context, number *big.Int) (*types.Block, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getBlockByNumber")
	if number != nil && number.Uint64() > b.Head {
		return nil, ethereum.NotFound
	}
	h := b.header()
	if number != nil {
		h.Number = new(big.Int).Set(number)
	}
	return types.NewBlockWithHeader(h), nil
}

func (b *Backend) BlockByHash(context.Context, common.Hash) (*types.Block, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getBlockByHash")
	return nil, ethereum.NotFound
}

func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getHeaderByNumber")
	if b.HeaderErr != nil {
		return nil, b.HeaderErr
	}
	return b.header(), nil
}

func (b *Backend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_call")
	if call.To == nil {
		return nil, fmt.Errorf("call without target")
	}
	m, args, err := b.decodeLocked(*call.To, call.Data)
	if err != nil {
		return nil, &RevertError{Reason: err.Error()}
	}
	h, ok := b.routes[*call.To].methods[m.Name]
	if !ok {
		return nil, &RevertError{Reason: "no handler for " + m.Name}
	}
	// handlers may read backend state, so run them unlocked
	b.mu.Unlock()
	out, err := h(call.From, args)
	b.mu.Lock()
	if err != nil {
		return nil, err
	}
	return m.Outputs.Pack(out...)
}

func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_estimateGas")
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return b.GasEstimate, nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_getTransactionCount")
	return b.Nonces[account], nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_gasPrice")
	if b.PriceErr != nil {
		return nil, b.PriceErr
	}
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("eth_maxPriorityFeePerGas")
	if b.TipErr != nil {
		return nil, b.TipErr
	}
	return new(big.Int).Set(b.TipCap), nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	b.count("eth_sendRawTransaction")
	if b.SendErr != nil {
		b.mu.Unlock()
		return b.SendErr
	}
	idx := len(b.sent)
	b.sent = append(b.sent, tx)
	if from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		b.Nonces[from] = tx.Nonce() + 1
	}
	if b.Unmined[idx] {
		b.mu.Unlock()
		return nil
	}
	status := b.Status
	if s, ok := b.FailStatus[idx]; ok {
		status = s
	}
	b.Head++
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.Head),
		GasUsed:     tx.Gas(),
	}
	var (
		method *abi.Method
		args   []interface{}
	)
	if tx.To() != nil {
		method, args, _ = b.decodeLocked(*tx.To(), tx.Data())
	}
	hooks := append([]SendHook(nil), b.hooks...)
	b.mu.Unlock()

	if status == types.ReceiptStatusSuccessful {
		for _, h := range hooks {
			h(tx, method, args)
		}
	}
	return nil
}

func (b *Backend) Close() {}
