package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "confique",
		Short:         "Confique campus board backend",
		Long:          "Confique serves the campus confessions, events, news and showcase API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newPurgeCommand())
	cmd.AddCommand(newFeedCommand())
	cmd.AddCommand(newVAPIDCommand())
	return cmd
}
