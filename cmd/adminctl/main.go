// Command adminctl is an operator CLI over the journaling core's store,
// for tasks an on-call engineer needs without going through the HTTP
// API: creating a user, clearing a user's saved template override so
// their reads fall back to the default template, and inspecting a
// user's task list. Grounded on
// Spencerx-cli/pkg/cli/cmd/root/root.go's cobra root-plus-Register
// pattern, trimmed to this module's single binary rather than a
// package-per-command tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cassidy/journal-core/internal/config"
	"github.com/cassidy/journal-core/internal/storage"
	"github.com/cassidy/journal-core/internal/store"
)

var root = &cobra.Command{
	Use:           "adminctl",
	Short:         "Operator commands for the journaling core",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	root.AddCommand(newCreateUserCmd())
	root.AddCommand(newReloadTemplateCmd())
	root.AddCommand(newListTasksCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

// openStore loads configuration and opens a direct store handle; every
// subcommand call this once at the top of its RunE rather than sharing
// a persistent connection, since adminctl runs one command and exits.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return store.New(db, cfg.Debug), func() { db.Close() }, nil
}
