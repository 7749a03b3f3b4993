package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newReloadTemplateCmd forces a template reload: with --user, it clears
// that user's saved override so their next read falls back to the
// process-wide default, the persisted counterpart of the
// reload_template tool's in-memory cache drop (which only ever affects
// the server process handling the tool call, not this short-lived
// binary).
func newReloadTemplateCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "reload-template",
		Short: "Clear a user's saved template override, forcing a fallback to the default on next read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := st.DeactivateTemplateOverride(cmd.Context(), st.DB(), userID); err != nil {
				return err
			}
			fmt.Printf("cleared template override for user %s\n", userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id whose template override should be cleared")
	return cmd
}
