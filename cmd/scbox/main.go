// Command scbox keeps a local directory tree synchronized with a remote
// tree hosted on an FTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcoscasamayor/scbox/internal/scbox"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "scbox {u|d|s}",
		Short:     "Synchronize a local directory tree with a remote FTP tree",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"u", "d", "s"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(scbox.Op(args[0]))
		},
	}
}

func runOp(op scbox.Op) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	driver := &scbox.Driver{Logger: slog.Default()}
	stats, err := driver.Run(ctx, cwd, op)
	if stats != nil {
		fmt.Println(stats.String())
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("interrupted, exiting cleanly")
		return nil
	}
	return err
}

// exitCodeFor maps driver errors to the shell exit codes spec §4.8/§6
// require: 0 on clean completion or user cancellation, 1 on configuration or
// connection failure, 1 on an invalid argument.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
