package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage the known peers",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add ADDRESS",
	Short: "Add a peer and announce it to the known peers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		report, err := n.state.AddPeer(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
		printReport(cmd, report)

		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the known peers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		peers := n.state.ListPeers()
		if len(peers) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no known peers")
			return nil
		}

		for _, address := range peers {
			fmt.Fprintln(cmd.OutOrStdout(), address)
		}

		return nil
	},
}

var nodePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping every known peer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		printReport(cmd, n.state.PingPeers(cmd.Context()))
		return nil
	},
}

var nodeSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the records this node is missing from the known peers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode()
		if err != nil {
			return err
		}

		n.state.Sync(cmd.Context())

		status := n.state.RetrieveStatus()
		fmt.Fprintf(cmd.OutOrStdout(), "blocks %d transactions %d pending %d peers %d\n", status.Blocks, status.Transactions, status.Pending, status.KnownPeers)

		return nil
	},
}

func init() {
	nodeCmd.AddCommand(nodeAddCmd, nodeListCmd, nodePingCmd, nodeSyncCmd)
	rootCmd.AddCommand(nodeCmd)
}
