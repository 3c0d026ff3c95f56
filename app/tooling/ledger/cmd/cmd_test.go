package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func run(t *testing.T, dir string, args ...string) string {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	base := []string{
		"--data-dir", filepath.Join(dir, "data"),
		"--account-path", filepath.Join(dir, "keys"),
	}
	rootCmd.SetArgs(append(base, args...))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("\t%s\tShould be able to run %v: %v", failed, args, err)
	}

	return out.String()
}

func Test_Commands(t *testing.T) {
	t.Log("Given the need to drive a node from the command line.")
	{
		dir := t.TempDir()

		out := run(t, dir, "account", "create", "alice")
		if !strings.HasPrefix(out, "created alice 0x") {
			t.Fatalf("\t%s\tShould create the account: %q", failed, out)
		}
		t.Logf("\t%s\tShould create the account.", success)

		out = run(t, dir, "account", "current")
		if !strings.HasPrefix(out, "alice 0x") {
			t.Fatalf("\t%s\tShould report alice as current: %q", failed, out)
		}
		t.Logf("\t%s\tShould report alice as current.", success)

		out = run(t, dir, "miner", "start", "--once", "--difficulty", "1")
		if !strings.Contains(out, "no pending transactions") {
			t.Fatalf("\t%s\tShould have nothing to mine: %q", failed, out)
		}
		t.Logf("\t%s\tShould have nothing to mine.", success)

		out = run(t, dir, "blockchain", "list")
		if !strings.Contains(out, "no blocks") {
			t.Fatalf("\t%s\tShould list no blocks: %q", failed, out)
		}
		t.Logf("\t%s\tShould list no blocks.", success)

		out = run(t, dir, "node", "list")
		if !strings.Contains(out, "no known peers") {
			t.Fatalf("\t%s\tShould list no peers: %q", failed, out)
		}
		t.Logf("\t%s\tShould list no peers.", success)
	}
}
