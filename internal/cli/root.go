// Package cli implements the agrolend command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/agrocredit/agrolend/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agrolend",
	Short: "Agricultural micro-lending front end",
	Long: `agrolend serves the farmer app and the bank back office over the
AgroCredit lending API. Every irreversible action is shown as a document
preview first and committed only on confirmation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default "+daemon.DefaultPath()+")")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config selected by --config.
func loadConfig() (daemon.Config, error) {
	return daemon.Load(configPath)
}
