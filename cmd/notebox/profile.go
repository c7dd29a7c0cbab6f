package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amirk1998/notebox/internal/models"
)

var (
	newUsername   string
	newEmail      string
	newPassword   string
	borrowedToken string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [user-id]",
	Short: "Show a user's profile (your own by default)",
	Long: `Show the profile stored on the server for a user id.

The server does not check that the id is yours unless it runs with
PROFILE_OWNERSHIP_CHECK=true, so any id can be looked up and the reply
includes that user's current session token.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signedIn(cmd); err != nil {
			return err
		}
		me, _ := notebox.User()
		id := me.ID
		if len(args) == 1 {
			var err error
			if id, err = parseID(args[0]); err != nil {
				return err
			}
		}

		profile, err := notebox.ViewProfile(cmd.Context(), id)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), profile)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintf(w, "id\t%d\n", profile.ID)
		fmt.Fprintf(w, "username\t%s\n", profile.Username)
		fmt.Fprintf(w, "email\t%s\n", profile.Email)
		fmt.Fprintf(w, "role\t%s\n", profile.Role)
		if profile.SessionToken != "" {
			fmt.Fprintf(w, "session_token\t%s\n", profile.SessionToken)
		}
		return w.Flush()
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change your username, email or password",
	RunE: func(cmd *cobra.Command, args []string) error {
		var update models.ProfileUpdate
		if cmd.Flags().Changed("username") {
			update.Username = &newUsername
		}
		if cmd.Flags().Changed("email") {
			update.Email = &newEmail
		}
		if cmd.Flags().Changed("password") {
			update.Password = &newPassword
		}
		if update.IsEmpty() {
			return fmt.Errorf("nothing to update, pass --username, --email or --password")
		}

		if err := signedIn(cmd); err != nil {
			return err
		}
		user, err := notebox.UpdateProfile(cmd.Context(), update)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Username, user.Email)
		return nil
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator views",
}

var adminDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the admin dashboard",
	Long: `Show the admin dashboard. With --token the request carries that session
token as a Bearer credential instead of the stored session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if borrowedToken == "" {
			if err := signedIn(cmd); err != nil {
				return err
			}
		}
		dash, err := notebox.AdminDashboard(cmd.Context(), borrowedToken)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), dash)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "users: %d  notes: %d\n\n", dash.UserCount, dash.NoteCount)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE")
		for _, u := range dash.Users {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Role)
		}
		return w.Flush()
	},
}

func init() {
	profileUpdateCmd.Flags().StringVar(&newUsername, "username", "", "new username")
	profileUpdateCmd.Flags().StringVar(&newEmail, "email", "", "new email")
	profileUpdateCmd.Flags().StringVar(&newPassword, "password", "", "new password")
	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd)

	adminDashboardCmd.Flags().StringVar(&borrowedToken, "token", "", "session token to present instead of the stored session")
	adminCmd.AddCommand(adminDashboardCmd)

	rootCmd.AddCommand(profileCmd, adminCmd)
}
