// Package deposit bridges ERC-20 tokens from the root chain to the child chain through the
// deposit manager.
package deposit

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"stakebridge/internal/allowance"
	"stakebridge/internal/contracts"
	"stakebridge/internal/logger"
	"stakebridge/internal/stakeerr"
	"stakebridge/internal/txsend"
)

type Client struct {
	depositManager common.Address
	sender         *txsend.Sender
	allowance      *allowance.Manager
	log            zerolog.Logger
}

func NewClient(depositManager common.Address, sender *txsend.Sender, allow *allowance.Manager, log zerolog.Logger) *Client {
	return &Client{
		depositManager: depositManager,
		sender:         sender,
		allowance:      allow,
		log:            logger.Component(log, "deposit"),
	}
}

// EncodeAmount encodes amount as 32 bytes, big-endian and left-zero-padded.
func EncodeAmount(amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, stakeerr.New(stakeerr.InvalidAmount, "amount must not be negative").WithAmount(amount)
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, stakeerr.New(stakeerr.InvalidAmount, "amount does not fit in 32 bytes").WithAmount(amount)
	}
	b := v.Bytes32()
	return b[:], nil
}

// EncodeAmountHex is EncodeAmount as a 0x-prefixed hex string.
func EncodeAmountHex(amount *big.Int) (string, error) {
	b, err := EncodeAmount(amount)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, stakeerr.New(stakeerr.InvalidAddress, "%s %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

func buildDepositArgs(p *Params, sender common.Address) (token, recipient common.Address, data []byte, err error) {
	if p == nil {
		err = stakeerr.New(stakeerr.InvalidAmount, "nil params")
		return
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		err = stakeerr.New(stakeerr.InvalidAmount, "amount must be > 0").WithAmount(p.Amount)
		return
	}
	if token, err = parseAddress("token", p.Token); err != nil {
		return
	}
	recipient = sender
	if strings.TrimSpace(p.Recipient) != "" {
		if recipient, err = parseAddress("recipient", p.Recipient); err != nil {
			return
		}
	}
	data, err = EncodeAmount(p.Amount)
	return
}

// Deposit approves the deposit manager for the amount if needed, then calls depositFor. It
// returns once the deposit is broadcast.
func (c *Client) Deposit(ctx context.Context, p *Params) (*Result, error) {
	from := c.sender.From()
	token, recipient, depositData, err := buildDepositArgs(p, from)
	if err != nil {
		return nil, err
	}

	approval, err := c.allowance.Ensure(ctx, token, from, c.depositManager, p.Amount)
	if err != nil {
		return nil, err
	}
	if approval != nil {
		c.log.Info().Str("tx", approval.Hex()).Str("token", token.Hex()).Msg("deposit manager approved")
	}

	data, err := contracts.DepositManagerABI.Pack("depositFor", recipient, token, depositData)
	if err != nil {
		return nil, err
	}
	pending, err := c.sender.Send(ctx, txsend.Request{To: c.depositManager, Data: data, Label: "depositFor"})
	if err != nil {
		return nil, err
	}
	return &Result{Approval: approval, Deposit: pending}, nil
}
