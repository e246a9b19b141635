/*
Copyright © 2024 Metal toolbox authors <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"os"

	"github.com/metal-toolbox/goldencfg/internal/log"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/spf13/cobra"
)

var (
	args = &model.Args{}
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "goldencfg",
	Short: "goldencfg backs up network device configurations and checks them against golden baselines",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		log.InitLogger()
		log.SetLevel(args.LogLevel)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&args.ConfigFile, "config", "", "configuration file (default is ./goldencfg.yml)")

	rootCmd.PersistentFlags().
		StringVar(&args.LogLevel, "log-level", "", "set logging level - debug, trace")

	rootCmd.PersistentFlags().
		BoolVarP(&args.EnableProfiling, "enable-pprof", "", false, "Enable profiling endpoint at: http://localhost:9091")

	rootCmd.PersistentFlags().
		StringSliceVarP(&args.Devices, "devices", "d", nil, "devices to run against, overrides the configured inventory")

	rootCmd.PersistentFlags().
		IntVarP(&args.Concurrency, "concurrency", "c", 0, "number of devices processed at once")
}
