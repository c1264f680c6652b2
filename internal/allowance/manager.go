// Package allowance makes sure a spender may move enough of the owner's ERC-20 tokens before a
// funds-moving call is sent.
package allowance

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"stakebridge/internal/contracts"
	"stakebridge/internal/logger"
	"stakebridge/internal/stakeerr"
	"stakebridge/internal/txsend"
)

// DefaultTimeout bounds each approval confirmation wait.
const DefaultTimeout = 120 * time.Second

// Unlimited is the approval ceiling: 2^256-1.
var Unlimited = new(uint256.Int).SetAllOne().ToBig()

type Manager struct {
	caller  *contracts.Caller
	sender  *txsend.Sender
	timeout time.Duration
	log     zerolog.Logger
}

func New(caller *contracts.Caller, sender *txsend.Sender, timeout time.Duration, log zerolog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{caller: caller, sender: sender, timeout: timeout, log: logger.Component(log, "allowance")}
}

// Ensure returns nil when the current allowance already covers required. Otherwise it resets a
// nonzero allowance to zero, then approves Unlimited, waiting for each step to confirm, and
// returns the hash of the final approval.
func (m *Manager) Ensure(ctx context.Context, token, owner, spender common.Address, required *big.Int) (*common.Hash, error) {
	current, err := m.caller.Allowance(ctx, token, owner, spender)
	if err != nil {
		return nil, err
	}
	if current.Cmp(required) >= 0 {
		return nil, nil
	}

	if current.Sign() > 0 {
		m.log.Info().
			Str("token", token.Hex()).
			Str("spender", spender.Hex()).
			Str("current", current.String()).
			Str("required", required.String()).
			Msg("resetting allowance to zero before approval")
		if _, err := m.approve(ctx, token, spender, new(big.Int), required); err != nil {
			return nil, err
		}
	}

	hash, err := m.approve(ctx, token, spender, Unlimited, required)
	if err != nil {
		return nil, err
	}
	return &hash, nil
}

func (m *Manager) approve(ctx context.Context, token, spender common.Address, amount, required *big.Int) (common.Hash, error) {
	data, err := contracts.ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, stakeerr.Wrap(err, stakeerr.ApprovalFailed, "pack approve").WithContract(token)
	}
	pending, err := m.sender.Send(ctx, txsend.Request{To: token, Data: data, Kind: txsend.Approval, Label: "approve"})
	if err != nil {
		return common.Hash{}, err
	}
	rcpt, err := m.sender.AwaitConfirmation(ctx, pending.Hash, m.timeout)
	if err != nil {
		if stakeerr.KindOf(err) == stakeerr.ConfirmationTimeout {
			return common.Hash{}, stakeerr.Wrap(err, stakeerr.ApprovalTimeout, "approve %s", pending.Hash.Hex()).
				WithContract(token).WithAmount(required)
		}
		return common.Hash{}, err
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, stakeerr.New(stakeerr.ApprovalFailed, "approve %s reverted", pending.Hash.Hex()).
			WithContract(token).WithAmount(required)
	}
	return pending.Hash, nil
}
