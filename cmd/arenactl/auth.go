package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func readPassword() (string, error) {
	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	password, err := readPassword()
	if err != nil {
		return err
	}

	user, err := c.Register(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s (id %d). Run \"arenactl login %s\" to log in.\n",
		user.Username, user.ID, user.Username)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	password, err := readPassword()
	if err != nil {
		return err
	}

	tok, err := c.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	if err := c.Session().SetToken(tok.AccessToken); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s.\n", args[0])
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	c, err := newArenaClient()
	if err != nil {
		return err
	}
	if err := c.Session().Clear(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
