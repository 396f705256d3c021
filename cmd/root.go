package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zte-adk",
	Short: "Cloud Run IAM security findings with AI-assisted remediation",
	Long: `ZTE-ADK scans Cloud Run services for IAM and configuration weaknesses,
stores the findings per scan job and explains them, summarizes scans and
proposes fixes through a generative model, falling back to deterministic
analysis whenever the model is unavailable.`,
}

var (
	DebugMode  bool
	NoAI       bool
	ConfigPath string
	OutputJSON bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&NoAI, "no-ai", false, "Skip the generative backend and use deterministic analysis")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default $HOME/.zte-adk/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&OutputJSON, "json", false, "Print results as JSON")
}
