package deposit

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakebridge/internal/network"
)

// Params describes one root-to-child bridge deposit.
type Params struct {
	// Token is the root-chain ERC-20 address (0x hex, required).
	Token string

	// Amount in the token's smallest unit (required, > 0).
	Amount *big.Int

	// Recipient on the child chain (0x hex). Empty means the sender.
	Recipient string
}

// Result of a bridge deposit. Approval is nil when the existing allowance already covered Amount.
type Result struct {
	Approval *common.Hash
	Deposit  *network.PendingTransaction
}
