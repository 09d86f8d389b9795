package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "canvas",
	Short: "Canvas - generate and preview UI components",
	Long: `Canvas asks a language model for a single UI component, with fallback
between providers, and renders the untrusted result in an isolated sandbox.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (canvas.yaml in the working directory is read regardless)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

func Execute() error {
	return rootCmd.Execute()
}
