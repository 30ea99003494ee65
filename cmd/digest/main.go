package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagEnv    string
)

var rootCmd = &cobra.Command{
	Use:   "digest",
	Short: "Daily digest of long-form videos from subscribed YouTube channels",
	Long: `digest polls the subscribed channels, drops Shorts and videos already seen,
ranks the remaining candidates with a text model and sends the best ones to Feishu.

Running without a subcommand is the same as "digest run".`,
	SilenceUsage: true,
	RunE:         runDigest,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "configs/pipeline.yaml", "path to pipeline config")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env-file", ".env", "optional dotenv file with credentials")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(feishuCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
