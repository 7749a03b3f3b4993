package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cassidy/journal-core/internal/tasks"
)

func newListTasksCmd() *cobra.Command {
	var userID string
	var includeCompleted bool

	cmd := &cobra.Command{
		Use:   "list-tasks",
		Short: "List a user's tasks in their canonical order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			st, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			mgr := tasks.New(st)
			list, err := mgr.List(cmd.Context(), st.DB(), userID, includeCompleted)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("no tasks")
				return nil
			}
			for _, t := range list {
				status := " "
				if t.IsCompleted {
					status = "x"
				}
				fmt.Printf("[%s] %2d  %s  (%s)\n", status, t.Priority, t.Title, t.ID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&userID, "user", "", "user id whose tasks to list")
	f.BoolVar(&includeCompleted, "include-completed", false, "include completed tasks")

	return cmd
}
