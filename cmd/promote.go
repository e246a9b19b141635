package cmd

import (
	"os"

	"github.com/metal-toolbox/goldencfg/internal/controllers"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/spf13/cobra"
)

var fromLatest bool

// promoteCmd represents the promote command
var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Save running configurations as the golden baselines",
	Long: `Promote captures the running configuration of each device and saves it as its golden baseline.
This is the only command writing golden baselines, limit it to the devices being approved with --devices.`,
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(runKind(cmd.Context(), kind.Promote, controllers.Options{FromLatest: fromLatest}))
	},
}

func init() {
	promoteCmd.Flags().
		BoolVar(&fromLatest, "from-latest", false, "promote the latest stored running snapshot instead of fetching from the device")

	rootCmd.AddCommand(promoteCmd)
}
