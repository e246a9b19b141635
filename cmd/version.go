package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/metal-toolbox/goldencfg/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, err := json.MarshalIndent(version.Current(), "", "  ")
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))

		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
