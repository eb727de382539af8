// logsift-admin performs offline maintenance of logsift state files.
// It is meant to run while the service itself is down (for example
// from logrotate hooks), so it works directly against the state
// directory.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/open-sift/logsift/internal/persist"
	"github.com/open-sift/logsift/internal/reader"
)

var (
	stateDir    string
	resetOnRead bool
	verbose     bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logsift-admin",
		Short: "Offline maintenance for logsift read cursors",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.TraceLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&stateDir, "state-dir", "/var/opt/logsift/state", "base directory holding position state files")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable trace logging")
	cmd.AddCommand(newResetAllCmd())
	return cmd
}

func newResetAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-all",
		Short: "Reset every persisted read cursor under the state directory",
		Long: `Reset every persisted read cursor under the state directory.

Without --reset-on-read each cursor moves to the current end of its log
file, forgetting any backlog. With --reset-on-read each cursor is only
marked; the next read re-baselines at the then-current end of file.

The exit code is 0 on full success, ENOENT if the state directory or a
referenced log file is missing, and EINTR for any other failure.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Open, don't create: if the service never ran here the
			// state directory is absent and ResetAll must report
			// ENOENT rather than find a directory this tool made.
			store := persist.OpenFileStore(stateDir)
			code := reader.New(store).ResetAll(stateDir, resetOnRead)
			os.Exit(code)
		},
	}
	cmd.Flags().BoolVar(&resetOnRead, "reset-on-read", false, "defer the reset to the next read")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
