package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stitchbook/internal/session"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the login session",
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in to the hosted backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		user, err := a.session.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", user.Name, user.Email)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup <email> <name>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		user, err := a.session.Signup(cmd.Context(), args[0], password, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", user.Name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and wipe all local data",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// Re-validate against the backend when reachable; an expired
		// session should surface here, not on the next write.
		if a.monitor.Online() {
			user, err := a.session.Refresh(cmd.Context())
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Name, user.Email)
				return nil
			}
			if errors.Is(err, session.ErrNoSession) {
				return err
			}
			// Backend unreachable mid-command: fall back to the cache.
		}

		user, err := a.session.Current()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Name, user.Email)
		return nil
	},
}

// readPassword takes the password from STITCHBOOK_PASSWORD or prompts on
// stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	if v := os.Getenv("STITCHBOOK_PASSWORD"); v != "" {
		return v, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(signupCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(authCmd)
}
