package cmd

import (
	"os"

	"github.com/metal-toolbox/goldencfg/internal/controllers"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/spf13/cobra"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Capture and archive running configurations",
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(runKind(cmd.Context(), kind.Backup, controllers.Options{}))
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
