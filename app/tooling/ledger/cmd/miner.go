package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/miner"
	"github.com/spf13/cobra"
)

var (
	beneficiary string
	reward      uint32
	difficulty  uint
	once        bool
)

var minerCmd = &cobra.Command{
	Use:   "miner",
	Short: "Mine blocks from the pending transactions",
}

var minerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Sync with the known peers and mine until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		n, err := openNode()
		if err != nil {
			return err
		}

		var address string
		if beneficiary != "" {
			account, err := n.accounts.Find(beneficiary)
			if err != nil {
				return err
			}
			address = account.Address
		}

		mnr, err := miner.New(miner.Config{
			Ledger:      n.state,
			Beneficiary: address,
			Reward:      reward,
			Difficulty:  difficulty,
			EvHandler: func(v string, args ...any) {
				fmt.Fprintf(cmd.ErrOrStderr(), v+"\n", args...)
			},
		})
		if err != nil {
			return err
		}

		n.state.Sync(ctx)

		if !once {
			return mnr.Run(ctx)
		}

		block, err := mnr.MineNext(ctx)
		if err != nil {
			if errors.Is(err, miner.ErrNoTransactions) {
				fmt.Fprintln(cmd.OutOrStdout(), err)
				return nil
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "mined #%d %s with %d transactions\n", block.Index, block.Hash, len(block.TransactionHashes))
		return nil
	},
}

func init() {
	minerStartCmd.Flags().StringVarP(&beneficiary, "beneficiary", "b", "", "Name of the account credited with the block reward.")
	minerStartCmd.Flags().Uint32VarP(&reward, "reward", "r", 50, "Reward paid to the beneficiary for each block.")
	minerStartCmd.Flags().UintVar(&difficulty, "difficulty", miner.DefaultDifficulty, "Number of leading zeros a block hash needs.")
	minerStartCmd.Flags().BoolVar(&once, "once", false, "Mine a single block and exit.")

	minerCmd.AddCommand(minerStartCmd)
	rootCmd.AddCommand(minerCmd)
}
