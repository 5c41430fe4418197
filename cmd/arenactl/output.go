package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/botarena/arena/pkg/arena/client"
)

// structured reports whether the output flag asks for a machine format
// instead of the default tables.
func structured() bool {
	return outputFmt == "json" || outputFmt == "yaml"
}

// printStructured emits v as indented JSON or YAML. The YAML path round-trips
// through JSON so both formats key fields by their json tags.
func printStructured(v any) error {
	if outputFmt == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	return enc.Encode(m)
}

func newTab() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func renderBotList(bots []client.Bot) {
	w := newTab()
	fmt.Fprintln(w, "ID\tNAME\tENV\tSUBMITTED\tDESCRIPTION")
	for _, b := range bots {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n",
			b.ID, b.Name, b.EnvID, b.Submitted, clip(b.Description, 40))
	}
	w.Flush()
}

func renderBotDetail(bot *client.BotDetail) {
	fmt.Printf("Bot %d: %s (env %s, submitted %v)\n", bot.ID, bot.Name, bot.EnvID, bot.Submitted)
	if bot.Description != "" {
		fmt.Printf("  %s\n", bot.Description)
	}

	w := newTab()
	fmt.Fprintln(w, "ID\tVERSION\tACTIVE\tCODE")
	for _, v := range bot.Versions {
		marker := ""
		if bot.ActiveVersionID != nil && v.ID == *bot.ActiveVersionID {
			marker = "*"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", v.ID, v.VersionNum, marker, clip(v.Code, 60))
	}
	w.Flush()
}

func renderSteps(steps []client.MatchStep) {
	w := newTab()
	fmt.Fprintln(w, "ROUND\tYOU\tOPP\tREWARD\tOPP REWARD\tCUM\tOPP CUM")
	for _, st := range steps {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			st.Round, st.ActA, st.ActB, st.RewardA, st.RewardB, st.CumA, st.CumB)
	}
	w.Flush()
}

func renderLeaderboard(rows []client.LeaderboardRow) {
	w := newTab()
	fmt.Fprintln(w, "RANK\tBOT\tCREATOR\tAVG SCORE\tAVG EXEC MS\tOPPONENTS\tDUELS")
	for i, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%.2f\t%d\t%d\n",
			i+1, r.BotName, r.Creator, r.AvgScore, r.AvgExecMS, r.Opponents, r.Duels)
	}
	w.Flush()
}

// clip collapses runs of whitespace so multi-line code fits one table cell,
// then shortens to max length, appending "..." if truncated.
func clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
