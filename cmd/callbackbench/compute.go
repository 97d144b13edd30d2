package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	nativecallback "github.com/opd-ai/nativecallback"
)

// computeSubcommand returns the compute subcommand.
func computeSubcommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compute <int32>",
		Short: "Print in*in + in with 32-bit wraparound",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid int32 %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compute(%d) = %d\n", in, nativecallback.Compute(int32(in)))
			return nil
		},
	}
}
