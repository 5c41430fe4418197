package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/botarena/arena/pkg/arena/ipd"
)

var botsCmd = &cobra.Command{
	Use:   "bots",
	Short: "Manage your bots",
}

var botsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your bots",
	Args:  cobra.NoArgs,
	RunE:  runBotsList,
}

var botsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a bot from a code file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsCreate,
}

var botsShowCmd = &cobra.Command{
	Use:   "show <bot-id>",
	Short: "Show a bot with its versions",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsShow,
}

var botsDeleteCmd = &cobra.Command{
	Use:   "delete <bot-id>",
	Short: "Delete a bot and all its versions and matches",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsDelete,
}

var (
	botCodeFile    string
	botDescription string
	botEnvID       string
)

func init() {
	botsCreateCmd.Flags().StringVarP(&botCodeFile, "file", "f", "", "File with the initial bot code (required)")
	botsCreateCmd.Flags().StringVarP(&botDescription, "description", "d", "", "Bot description")
	botsCreateCmd.Flags().StringVar(&botEnvID, "env", ipd.EnvID, "Environment the bot plays in")
	_ = botsCreateCmd.MarkFlagRequired("file")

	botsCmd.AddCommand(botsListCmd)
	botsCmd.AddCommand(botsCreateCmd)
	botsCmd.AddCommand(botsShowCmd)
	botsCmd.AddCommand(botsDeleteCmd)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return id, nil
}

func runBotsList(cmd *cobra.Command, args []string) error {
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	bots, err := c.ListBots(cmd.Context())
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(bots)
	}
	renderBotList(bots)
	return nil
}

func runBotsCreate(cmd *cobra.Command, args []string) error {
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	code, err := os.ReadFile(botCodeFile)
	if err != nil {
		return fmt.Errorf("read code file: %w", err)
	}

	bot, err := c.CreateBot(cmd.Context(), botEnvID, args[0], botDescription, string(code))
	if err != nil {
		return err
	}
	fmt.Printf("Created bot %q (id %d), version 1 active.\n", bot.Name, bot.ID)
	return nil
}

func runBotsShow(cmd *cobra.Command, args []string) error {
	botID, err := parseID(args[0], "bot id")
	if err != nil {
		return err
	}
	c, err := newArenaClient()
	if err != nil {
		return err
	}

	bot, err := c.GetBot(cmd.Context(), botID)
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(bot)
	}
	renderBotDetail(bot)
	return nil
}

func runBotsDelete(cmd *cobra.Command, args []string) error {
	botID, err := parseID(args[0], "bot id")
	if err != nil {
		return err
	}
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	if err := c.DeleteBot(cmd.Context(), botID); err != nil {
		return err
	}
	fmt.Printf("Deleted bot %d.\n", botID)
	return nil
}
