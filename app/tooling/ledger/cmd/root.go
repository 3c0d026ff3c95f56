// Package cmd contains the ledger command line application.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/ledger/foundation/blockchain/broadcast"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/spf13/cobra"
)

var (
	dataDir     string
	accountPath string
	scheme      string
	host        string
	callTimeout time.Duration
	verbose     bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "zblock/data/", "Path to the directory with the ledger collections.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&scheme, "scheme", "s", peer.DefaultScheme, "Scheme applied to peer addresses without one.")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Address peers reach this node on, never used as a peer.")
	rootCmd.PersistentFlags().DurationVarP(&callTimeout, "timeout", "t", 5*time.Second, "Timeout for each peer call.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print node events.")
}

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Command line front end for a ledger node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command selected by the arguments. An interrupt cancels
// the command context so in flight peer calls are abandoned.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// =============================================================================

// node is the local view of the ledger the commands work against.
type node struct {
	db       *database.Database
	state    *state.State
	accounts *accounts.Accounts
}

// openNode opens the local collections. The node is not synced with its
// peers, commands that need the network state call Sync themselves.
func openNode() (node, error) {
	ev := func(v string, args ...any) {
		if verbose {
			fmt.Fprintf(os.Stderr, v+"\n", args...)
		}
	}

	db, err := database.New(dataDir, ev)
	if err != nil {
		return node{}, err
	}

	accts, err := accounts.New(accountPath, db.Accounts)
	if err != nil {
		return node{}, err
	}

	st, err := state.New(state.Config{
		Host:        host,
		Database:    db,
		Scheme:      scheme,
		CallTimeout: callTimeout,
		EvHandler:   ev,
	})
	if err != nil {
		return node{}, err
	}

	n := node{
		db:       db,
		state:    st,
		accounts: accts,
	}

	return n, nil
}

// printReport writes the per peer outcome of a broadcast.
func printReport(cmd *cobra.Command, report broadcast.Report[bool]) {
	out := cmd.OutOrStdout()

	if len(report) == 0 {
		fmt.Fprintln(out, "no known peers")
		return
	}

	for _, o := range report {
		switch o.Err {
		case nil:
			fmt.Fprintf(out, "  %-40s ok\n", o.Peer)
		default:
			fmt.Fprintf(out, "  %-40s %s\n", o.Peer, o.Err)
		}
	}

	fmt.Fprintf(out, "delivered to %d of %d peers\n", len(report.Successes()), len(report))
}
