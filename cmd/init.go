package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize saga configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure provider slots and storage paths, then writes the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
