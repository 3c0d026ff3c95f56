package cmd

import (
	"fmt"
	"slices"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var blockchainCmd = &cobra.Command{
	Use:   "blockchain",
	Short: "Inspect the stored blocks",
}

var blockchainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored blocks ordered by index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		blocks := n.state.CurrentBlocks()
		if len(blocks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no blocks")
			return nil
		}

		slices.SortStableFunc(blocks, func(a, b database.Block) int {
			return int(a.Index) - int(b.Index)
		})

		out := cmd.OutOrStdout()
		for _, block := range blocks {
			fmt.Fprintf(out, "#%-6d %s %s\n", block.Index, block.Hash, time.Unix(int64(block.Timestamp), 0).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "        previous %s nonce %d\n", block.PreviousBlockHash, block.Nonce)
			for _, hash := range block.TransactionHashes {
				fmt.Fprintf(out, "        tx %s\n", hash)
			}
		}

		return nil
	},
}

func init() {
	blockchainCmd.AddCommand(blockchainListCmd)
	rootCmd.AddCommand(blockchainCmd)
}
