// This program is the command line front end for a ledger node. It works
// against the node's local data directory and shares changes with the
// known peers.
package main

import "github.com/ardanlabs/ledger/app/tooling/ledger/cmd"

func main() {
	cmd.Execute()
}
