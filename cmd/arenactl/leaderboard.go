package main

import (
	"github.com/spf13/cobra"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the public IPD leaderboard",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboard,
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	rows, err := c.Leaderboard(cmd.Context())
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(rows)
	}
	renderLeaderboard(rows)
	return nil
}
