package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <bot-id>",
	Short: "Run the bot's active version against the baseline opponent",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestMatch,
}

var submitCmd = &cobra.Command{
	Use:   "submit <bot-id>",
	Short: "Submit the bot to the public leaderboard",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var matchCmd = &cobra.Command{
	Use:   "match <match-id>",
	Short: "Show a match with its per-round steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runMatchShow,
}

var matchTail int

func init() {
	matchCmd.Flags().IntVar(&matchTail, "tail", 10, "Number of final rounds to print (0 for all)")
}

func runTestMatch(cmd *cobra.Command, args []string) error {
	w, err := newWorkbench(cmd, args[0])
	if err != nil {
		return err
	}

	res, err := w.RunTest(cmd.Context())
	if err != nil {
		return err
	}
	defer w.AckResult()

	if structured() {
		return printStructured(res)
	}
	fmt.Printf("Match %d finished: you %d, opponent %d.\n", res.MatchID, res.CumA, res.CumB)
	fmt.Printf("Inspect rounds with \"arenactl match %d\".\n", res.MatchID)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	w, err := newWorkbench(cmd, args[0])
	if err != nil {
		return err
	}

	if w.Bot().Submitted {
		fmt.Println("Bot is already submitted.")
		return nil
	}
	if err := w.Submit(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Bot %d submitted. It now appears on the leaderboard.\n", w.BotID())
	return nil
}

func runMatchShow(cmd *cobra.Command, args []string) error {
	matchID, err := parseID(args[0], "match id")
	if err != nil {
		return err
	}
	c, err := newArenaClient()
	if err != nil {
		return err
	}

	match, err := c.GetMatch(cmd.Context(), matchID)
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(match)
	}

	fmt.Printf("Match %d vs %s (env %s, seed %d): %s\n",
		match.ID, match.OpponentName, match.EnvID, match.Seed, match.Status)
	if match.CumA != nil && match.CumB != nil {
		fmt.Printf("Final score: you %d, opponent %d over %d rounds.\n",
			*match.CumA, *match.CumB, len(match.Steps))
	}

	steps := match.Steps
	if matchTail > 0 && len(steps) > matchTail {
		fmt.Printf("(showing the last %d rounds)\n", matchTail)
		steps = steps[len(steps)-matchTail:]
	}
	renderSteps(steps)
	return nil
}
