package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	from   string
	to     string
	amount uint32
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Create and list transactions",
}

var txTransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Transfer value to an address and share it with the known peers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		n, err := openNode()
		if err != nil {
			return err
		}

		var sender database.Account
		switch from {
		case "":
			sender, err = n.accounts.Current()
		default:
			sender, err = n.accounts.Find(from)
		}
		if err != nil {
			return err
		}

		tx, err := accounts.Transfer(sender.Address, to, amount, n.state.CurrentTransactions(), time.Now())
		if err != nil {
			return err
		}

		report, err := n.state.SubmitTransaction(ctx, tx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "pending %s\n", tx.Hash)
		printReport(cmd, report)

		return nil
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the confirmed transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		printTransactions(cmd.OutOrStdout(), n.accounts, n.state.CurrentTransactions())
		return nil
	},
}

var txPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List the transactions waiting to be mined",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		printTransactions(cmd.OutOrStdout(), n.accounts, n.state.PendingTransactions())
		return nil
	},
}

func init() {
	txTransferCmd.Flags().StringVarP(&from, "from", "f", "", "Name of the sending account, defaults to the current account.")
	txTransferCmd.Flags().StringVar(&to, "to", "", "Address of the receiver.")
	txTransferCmd.Flags().Uint32VarP(&amount, "amount", "a", 0, "Value to transfer.")
	txTransferCmd.MarkFlagRequired("to")
	txTransferCmd.MarkFlagRequired("amount")

	txCmd.AddCommand(txTransferCmd, txListCmd, txPendingCmd)
	rootCmd.AddCommand(txCmd)
}

func printTransactions(w io.Writer, accts *accounts.Accounts, txs []database.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "no transactions")
		return
	}

	for _, tx := range txs {
		fmt.Fprintf(w, "%s %s\n", tx.Hash, time.Unix(int64(tx.Timestamp), 0).UTC().Format(time.RFC3339))
		for _, in := range tx.Inputs {
			fmt.Fprintf(w, "  from %s %d\n", accts.Lookup(in.SenderAddress), in.Amount)
		}
		for _, out := range tx.Outputs {
			fmt.Fprintf(w, "  to   %s %d\n", accts.Lookup(out.ReceiverAddress), out.Amount)
		}
	}
}
