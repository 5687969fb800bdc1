package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// exitError carries a process exit code out of a command. Its message has
// already been reported.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "courtsched",
		Short:         "Books shared courts the moment their booking window opens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "run configuration file (default $BOOKING_CONFIG or booking.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServerCmd(g))
	root.AddCommand(newUserCmd(g))
	root.AddCommand(newBookCmd(g))
	root.AddCommand(newConfirmCmd(g))
	root.AddCommand(newWindowCmd(g))
	root.AddCommand(newPlanCmd(g))
	root.AddCommand(newRunsCmd(g))

	return root
}

func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
