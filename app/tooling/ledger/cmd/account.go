package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/accounts"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage local accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Generate a new key pair and store the account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		account, err := n.accounts.Create(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", account.Name, account.Address)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the local accounts and their confirmed balances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		confirmed := n.state.CurrentTransactions()
		for _, account := range n.accounts.List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s %d\n", account.Name, account.Address, accounts.Balance(account.Address, confirmed))
		}

		return nil
	},
}

var accountCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the most recently created account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		account, err := n.accounts.Current()
		if err != nil {
			if errors.Is(err, accounts.ErrNoAccount) {
				fmt.Fprintln(cmd.OutOrStdout(), err)
				return nil
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", account.Name, account.Address)
		return nil
	},
}

func init() {
	accountCmd.AddCommand(accountCreateCmd, accountListCmd, accountCurrentCmd)
	rootCmd.AddCommand(accountCmd)
}
