package cmd

import (
	"github.com/spf13/cobra"
)

const AppName = "trsdisk"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - TRS-80 disk image driver and mount tool",
	}
	rootCmd.PersistentFlags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")

	rootCmd.AddCommand(DefineMountCommand())
	rootCmd.AddCommand(DefineLsCommand())
	rootCmd.AddCommand(DefineCatCommand())
	rootCmd.AddCommand(DefineCpInCommand())
	rootCmd.AddCommand(DefineCpOutCommand())
	rootCmd.AddCommand(DefineRmCommand())
	rootCmd.AddCommand(DefineInfoCommand())

	return rootCmd.Execute()
}
