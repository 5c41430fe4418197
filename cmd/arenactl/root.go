package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/botarena/arena/pkg/arena/client"
)

var (
	serverURL string
	outputFmt string
)

var rootCmd = &cobra.Command{
	Use:   "arenactl",
	Short: "CLI for the bot arena server",
	Long: `arenactl manages bots on an arena server: accounts, versioned bot code,
sandboxed test runs against the baseline opponent, and submission to the
public leaderboard.

Credentials from "arenactl login" are stored under the user config directory
and attached to every authenticated call.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Arena server URL (or ARENA_SERVER env)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(botsCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(leaderboardCmd)
}

// resolvedServer returns the effective server URL.
// Priority: --server flag > ARENA_SERVER env var > localhost default.
func resolvedServer() string {
	if rootCmd.PersistentFlags().Changed("server") {
		return serverURL
	}
	if s := os.Getenv("ARENA_SERVER"); s != "" {
		return s
	}
	return serverURL
}

// credentialDir is where the login token is persisted.
func credentialDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "arena"), nil
}

// newArenaClient builds a client with the persisted credential session.
func newArenaClient() (*client.Client, error) {
	dir, err := credentialDir()
	if err != nil {
		return nil, err
	}
	session, err := client.NewStoredSession(client.NewFileTokenStore(dir))
	if err != nil {
		return nil, err
	}
	return client.New(resolvedServer(), client.WithSession(session)), nil
}
