package main

import (
	"fmt"

	"confique/notify"

	"github.com/spf13/cobra"
)

func newVAPIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for Web Push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			public, private, err := notify.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generating VAPID keys: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Add these to your .env file:")
			fmt.Fprintf(out, "VAPID_PUBLIC_KEY=%s\n", public)
			fmt.Fprintf(out, "VAPID_PRIVATE_KEY=%s\n", private)
			fmt.Fprintln(out, "VAPID_SUBJECT=mailto:you@example.com")
			return nil
		},
	}
}
