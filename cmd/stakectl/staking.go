package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"stakebridge/internal/network"
)

type txOutput struct {
	Hash   string  `json:"hash"`
	From   string  `json:"from"`
	To     string  `json:"to,omitempty"`
	Nonce  uint64  `json:"nonce"`
	Gas    uint64  `json:"gas"`
	Status *uint64 `json:"status,omitempty"`
	Block  uint64  `json:"block,omitempty"`
}

func newTxOutput(p *network.PendingTransaction) *txOutput {
	if p == nil {
		return nil
	}
	out := &txOutput{Hash: p.Hash.Hex(), From: p.From.Hex(), Nonce: p.Nonce, Gas: p.Gas}
	if p.To != nil {
		out.To = p.To.Hex()
	}
	return out
}

func addWaitFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("wait", false, "wait for the transaction to be mined")
	cmd.Flags().Duration("timeout", 0, "confirmation timeout (default confirm_timeout)")
}

// maybeWait fills in the receipt fields when --wait is set.
func (a *app) maybeWait(cmd *cobra.Command, out *txOutput, hash common.Hash) error {
	wait, _ := cmd.Flags().GetBool("wait")
	if !wait || out == nil {
		return nil
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	rcpt, err := a.orch.AwaitConfirmation(cmd.Context(), hash, timeout)
	if err != nil {
		return err
	}
	status := rcpt.Status
	out.Status = &status
	if rcpt.BlockNumber != nil {
		out.Block = rcpt.BlockNumber.Uint64()
	}
	return nil
}

func (a *app) printTx(cmd *cobra.Command, label string, p *network.PendingTransaction) error {
	out := newTxOutput(p)
	if err := a.maybeWait(cmd, out, p.Hash); err != nil {
		return err
	}
	text := fmt.Sprintf("%s tx %s (nonce %d, gas %d)", label, out.Hash, out.Nonce, out.Gas)
	if out.Status != nil {
		text += fmt.Sprintf(" mined in block %d, status %d", out.Block, *out.Status)
	}
	return a.print(cmd, out, text)
}

func newValidatorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validator <id>",
		Short: "Show a validator's status, stake and commission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseValidatorID(args[0])
			if err != nil {
				return err
			}
			info, err := a.orch.ValidatorInfo(cmd.Context(), id)
			if err != nil {
				return err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "validator %d\n", info.ID)
			fmt.Fprintf(&b, "  status:      %s\n", info.Status)
			fmt.Fprintf(&b, "  total stake: %s\n", formatUnits(info.TotalStake, 18))
			fmt.Fprintf(&b, "  self stake:  %s\n", formatUnits(info.SelfStake, 18))
			fmt.Fprintf(&b, "  delegated:   %s\n", formatUnits(info.DelegatedStake, 18))
			fmt.Fprintf(&b, "  commission:  %.2f%%\n", info.CommissionPercent)
			fmt.Fprintf(&b, "  signer:      %s\n", info.Signer.Hex())
			fmt.Fprintf(&b, "  contract:    %s", info.ContractAddress.Hex())
			return a.print(cmd, info, b.String())
		},
	}
}

func newDelegatorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delegator <validator-id> [address]",
		Short: "Show a delegator's stake and pending rewards (default: the signer)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseValidatorID(args[0])
			if err != nil {
				return err
			}
			who := a.orch.Address()
			if len(args) == 2 {
				if who, err = parseAddress(args[1]); err != nil {
					return err
				}
			}
			info, found, err := a.orch.DelegatorInfo(cmd.Context(), id, who)
			if err != nil {
				return err
			}
			if !found {
				return a.print(cmd, map[string]interface{}{"found": false},
					fmt.Sprintf("%s has no delegation with validator %d", who.Hex(), id))
			}
			return a.print(cmd, info, fmt.Sprintf("delegated %s, pending rewards %s",
				formatUnits(info.Delegated, 18), formatUnits(info.PendingRewards, 18)))
		},
	}
}

func newDelegateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delegate <validator-id> <amount>",
		Short: "Delegate staking tokens to a validator, approving the share contract if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseValidatorID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			p, err := a.orch.Delegate(cmd.Context(), id, amount)
			if err != nil {
				return err
			}
			return a.printTx(cmd, "buyVoucher", p)
		},
	}
	addWaitFlags(cmd)
	return cmd
}

func newUndelegateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undelegate <validator-id> <amount>",
		Short: "Start unbonding the given token amount from a validator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseValidatorID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			p, err := a.orch.Undelegate(cmd.Context(), id, amount)
			if err != nil {
				return err
			}
			return a.printTx(cmd, "sellVoucher", p)
		},
	}
	addWaitFlags(cmd)
	return cmd
}

func newWithdrawRewardsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw-rewards <validator-id>",
		Short: "Withdraw pending delegation rewards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseValidatorID(args[0])
			if err != nil {
				return err
			}
			p, err := a.orch.WithdrawRewards(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printTx(cmd, "withdrawRewards", p)
		},
	}
	addWaitFlags(cmd)
	return cmd
}

func newRestakeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restake <validator-id>",
		Short: "Withdraw pending rewards and delegate them back to the same validator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseValidatorID(args[0])
			if err != nil {
				return err
			}
			res, err := a.orch.RestakeRewards(cmd.Context(), id)
			if res != nil && res.Withdraw != nil && err != nil {
				a.log.Error().Str("withdraw_tx", res.Withdraw.Hash.Hex()).Msg("rewards withdrawn but not delegated")
			}
			if err != nil {
				return err
			}
			if res.NoOp {
				return a.print(cmd, map[string]interface{}{"noop": true}, "no rewards to restake")
			}
			delegate := newTxOutput(res.Delegate)
			if err := a.maybeWait(cmd, delegate, res.Delegate.Hash); err != nil {
				return err
			}
			out := map[string]interface{}{
				"amount":   res.Amount.String(),
				"withdraw": newTxOutput(res.Withdraw),
				"delegate": delegate,
			}
			return a.print(cmd, out, fmt.Sprintf("restaked %s: withdraw %s, delegate %s",
				formatUnits(res.Amount, 18), res.Withdraw.Hash.Hex(), res.Delegate.Hash.Hex()))
		},
	}
	addWaitFlags(cmd)
	return cmd
}

func newFeeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fee",
		Short: "Show the current root network fee quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.orch.RootFeeQuote(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]string{
				"maxFeePerGas":         q.MaxFeePerGas.String(),
				"maxPriorityFeePerGas": q.MaxPriorityFeePerGas.String(),
				"source":               q.Source,
			}
			return a.print(cmd, out, fmt.Sprintf("max fee %s gwei, tip %s gwei (%s)",
				formatUnits(q.MaxFeePerGas, 9), formatUnits(q.MaxPriorityFeePerGas, 9), q.Source))
		},
	}
}
