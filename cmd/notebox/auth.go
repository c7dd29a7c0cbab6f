package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	password string
	email    string
)

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok, _ := notebox.Start(cmd.Context()); ok {
			return fmt.Errorf("already logged in, run 'notebox logout' first")
		}
		pw, err := readSecret(cmd, "Password: ", password)
		if err != nil {
			return err
		}
		user, err := notebox.Register(cmd.Context(), args[0], email, pw)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in and keep the session for later commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readSecret(cmd, "Password: ", password)
		if err != nil {
			return err
		}
		user, err := notebox.Login(cmd.Context(), args[0], pw)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", user.Username, user.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := notebox.Logout(cmd.Context())
		if !res.ServerAcknowledged && res.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: server did not confirm logout: %v\n", res.Err)
		}
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signedIn(cmd); err != nil {
			return err
		}
		user, _ := notebox.User()
		if asJSON {
			return printJSON(cmd.OutOrStdout(), user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> id=%d role=%s\n", user.Username, user.Email, user.ID, user.Role)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&email, "email", "", "email address")
	registerCmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	registerCmd.MarkFlagRequired("email")
	loginCmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := notebox.Health(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "healthy")
		return nil
	},
}
