package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "open-idm",
	Short:         "open-idm keeps identity data in step with connected resource systems.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentPreRunE = bootstrapCommandLogging
	rootCmd.AddCommand(migrateCmd, startupCmd, syncCmd, workerCmd, connectorServerCmd)
}
