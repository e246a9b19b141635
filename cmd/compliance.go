package cmd

import (
	"os"

	"github.com/metal-toolbox/goldencfg/internal/controllers"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/spf13/cobra"
)

// complianceCmd represents the compliance command
var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Check running configurations against their golden baselines",
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(runKind(cmd.Context(), kind.Compliance, controllers.Options{}))
	},
}

func init() {
	rootCmd.AddCommand(complianceCmd)
}
