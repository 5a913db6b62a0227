package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-engine/pkg/ocr"
)

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ocr-engine %s\n", Version)
			fmt.Fprintf(out, "  Library:    %s\n", ocr.Version())
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			return nil
		},
	}
}
