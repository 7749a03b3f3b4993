package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/auth"
	"github.com/cassidy/journal-core/internal/store"
)

func newCreateUserCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a new user directly, bypassing the registration endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}

			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var emailPtr *string
			if email != "" {
				emailPtr = &email
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			user, err := st.CreateUser(cmd.Context(), st.DB(), username, emailPtr, hash)
			if err != nil {
				if store.IsUniqueViolation(err) {
					return apperr.Conflict("username or email already in use")
				}
				return err
			}
			fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&username, "username", "", "username for the new user")
	f.StringVar(&email, "email", "", "optional email address")
	f.StringVar(&password, "password", "", "initial password")

	return cmd
}
