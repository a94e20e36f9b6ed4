package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saga",
	Short: "Personal knowledge assistant with hybrid retrieval",
	Long: `Saga turns your documents and notes into a queryable personal knowledge
base. It indexes files for hybrid vector and keyword search, answers
questions grounded in your own material with source citations, and keeps
long conversations within the model's context budget.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// defaultConfigPath resolves the config location: $SAGA_CONFIG, then
// ~/.saga/config.yml, then ./saga.yml when no home is available.
func defaultConfigPath() string {
	if p := os.Getenv("SAGA_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "saga.yml"
	}
	return filepath.Join(home, ".saga", "config.yml")
}
