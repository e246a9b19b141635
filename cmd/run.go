package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/metal-toolbox/goldencfg/internal/controllers"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/metal-toolbox/goldencfg/internal/report"
	"github.com/spf13/cobra"
)

// runKind runs a controller kind against the inventory, prints the result table
// and returns the process exit status, non zero when any device failed or is not compliant.
func runKind(ctx context.Context, k kind.Controller, opts controllers.Options) int {
	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cancel the context when we receive a termination signal.
	go func() {
		select {
		case s := <-termChan:
			slog.Info("Received signal for termination, exiting...", "signal", s.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	results, err := controllers.Run(ctx, k, args, opts)
	if err != nil {
		slog.Error("Run failed", "kind", k.String(), "error", err)
		return 1
	}

	if err := report.Write(os.Stdout, results); err != nil {
		slog.Error("Failed to write report", "error", err)
	}

	slog.Info("Run completed", "kind", k.String(), "summary", report.Summary(results))

	return report.ExitCode(results)
}

// runCmd runs any controller kind by name, for schedulers that template the kind
var runCmd = &cobra.Command{
	Use:       "run <compliance|backup|promote>",
	Short:     "Run a controller kind by name",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{kind.ComplianceStr, kind.BackupStr, kind.PromoteStr},
	RunE: func(cmd *cobra.Command, cmdArgs []string) error {
		k, err := kind.FromString(cmdArgs[0])
		if err != nil {
			return err
		}

		os.Exit(runKind(cmd.Context(), k, controllers.Options{FromLatest: fromLatest}))

		return nil
	},
}

func init() {
	runCmd.Flags().
		BoolVar(&fromLatest, "from-latest", false, "with promote, use the latest stored running snapshot instead of fetching from the device")

	rootCmd.AddCommand(runCmd)
}
