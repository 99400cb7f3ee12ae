package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/strata"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of strata-render",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "strata-render version %s\n", strata.Version)
		},
	}
}
