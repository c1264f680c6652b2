package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"stakebridge/internal/deposit"
)

func newCheckpointCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Show the last child block covered by a root chain checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			last, err := a.orch.LastCheckpointedBlock(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]uint64{"lastCheckpointedBlock": last},
				fmt.Sprintf("last checkpointed child block: %d", last))
		},
	}
}

func newIsCheckpointedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "is-checkpointed <child-block>",
		Short: "Report whether a child block is covered by a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			block, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "child block %q", args[0])
			}
			ok, err := a.orch.IsCheckpointed(cmd.Context(), block)
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]interface{}{"block": block, "checkpointed": ok},
				fmt.Sprintf("block %d checkpointed: %t", block, ok))
		},
	}
}

func newBridgeCmd(a *app) *cobra.Command {
	var recipient string
	cmd := &cobra.Command{
		Use:   "bridge <root-token> <amount>",
		Short: "Deposit ERC-20 tokens from the root chain to the child chain",
		Long: `Approves the deposit manager for the amount if the current allowance is short, waits for
the approval to be mined, then calls depositFor. The recipient defaults to the signer.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			res, err := a.orch.BridgeDeposit(cmd.Context(), &deposit.Params{
				Token:     args[0],
				Amount:    amount,
				Recipient: recipient,
			})
			if err != nil {
				return err
			}
			if res.Approval != nil {
				a.log.Info().Str("tx", res.Approval.Hex()).Msg("approval mined")
			}
			return a.printTx(cmd, "depositFor", res.Deposit)
		},
	}
	cmd.Flags().StringVar(&recipient, "to", "", "child chain recipient (default: the signer)")
	addWaitFlags(cmd)
	return cmd
}
