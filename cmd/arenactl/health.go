package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE:  runHealthCheck,
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	if err := c.Health(cmd.Context()); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	if structured() {
		return printStructured(map[string]string{"status": "ok"})
	}
	fmt.Println("ok")
	return nil
}
