package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/botarena/arena/pkg/arena/workbench"
)

var saveCmd = &cobra.Command{
	Use:   "save <bot-id>",
	Short: "Save a code file as a new version and make it active",
	Long: `Save reads the code file, persists it as the bot's next version, and moves
the active pointer to it. Code that matches an existing version (ignoring
leading and trailing whitespace) is refused without contacting the server.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

var activateCmd = &cobra.Command{
	Use:   "activate <bot-id> <version-id>",
	Short: "Make an existing version the active one",
	Args:  cobra.ExactArgs(2),
	RunE:  runActivate,
}

var deleteVersionCmd = &cobra.Command{
	Use:   "delete-version <bot-id> <version-id>",
	Short: "Delete a non-active version",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeleteVersion,
}

var saveCodeFile string

func init() {
	saveCmd.Flags().StringVarP(&saveCodeFile, "file", "f", "", "File with the bot code (required)")
	_ = saveCmd.MarkFlagRequired("file")

	botsCmd.AddCommand(deleteVersionCmd)
}

// newWorkbench loads a workbench for the bot named by arg.
func newWorkbench(cmd *cobra.Command, arg string) (*workbench.Workbench, error) {
	botID, err := parseID(arg, "bot id")
	if err != nil {
		return nil, err
	}
	c, err := newArenaClient()
	if err != nil {
		return nil, err
	}
	w := workbench.New(c, botID)
	if err := w.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return w, nil
}

func runSave(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(saveCodeFile)
	if err != nil {
		return fmt.Errorf("read code file: %w", err)
	}

	w, err := newWorkbench(cmd, args[0])
	if err != nil {
		return err
	}

	w.SetBuffer(string(code))
	if !w.Dirty() && w.Bot().ActiveVersion() != nil {
		fmt.Println("Code matches the active version, nothing to save.")
		return nil
	}
	if err := w.Save(cmd.Context()); err != nil {
		if errors.Is(err, workbench.ErrDuplicateCode) {
			return fmt.Errorf("refused: %w", err)
		}
		return err
	}

	active := w.Bot().ActiveVersion()
	fmt.Printf("Saved version %d (id %d), now active.\n", active.VersionNum, active.ID)
	return nil
}

func runActivate(cmd *cobra.Command, args []string) error {
	versionID, err := parseID(args[1], "version id")
	if err != nil {
		return err
	}
	w, err := newWorkbench(cmd, args[0])
	if err != nil {
		return err
	}

	if err := w.SetActive(cmd.Context(), versionID); err != nil {
		return err
	}
	fmt.Printf("Version %d is now active.\n", versionID)
	return nil
}

func runDeleteVersion(cmd *cobra.Command, args []string) error {
	versionID, err := parseID(args[1], "version id")
	if err != nil {
		return err
	}
	w, err := newWorkbench(cmd, args[0])
	if err != nil {
		return err
	}

	if err := w.DeleteVersion(cmd.Context(), versionID); err != nil {
		if errors.Is(err, workbench.ErrActiveVersion) {
			return fmt.Errorf("refused: %w (activate another version first)", err)
		}
		return err
	}
	fmt.Printf("Deleted version %d.\n", versionID)
	return nil
}
