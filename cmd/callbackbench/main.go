// Command callbackbench exercises the native callback surface and reports
// how long each callback takes to become available to the caller.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "callbackbench",
		Short:         "Drive the native callback test surface",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(computeSubcommand())
	root.AddCommand(runSubcommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("callbackbench failed")
		os.Exit(1)
	}
}
