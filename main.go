package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dropstream/drops-miner/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "drops-miner",
		Short: "Automated drop mining for live-stream reward campaigns",
		Long: `drops-miner earns time-gated viewer rewards without a browser.

It discovers active reward campaigns, selects an eligible live channel,
and emits the same periodic watch signal a real viewer would, tracking
drop progress from both the realtime push feed and the reward
inventory. Completed drops are claimed automatically.`,
	}

	rootCmd.AddCommand(cmd.MineCmd())
	rootCmd.AddCommand(cmd.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
