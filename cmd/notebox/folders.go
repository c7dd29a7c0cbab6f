package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amirk1998/notebox/internal/models"
)

var folderColor string

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Group notes into local folders",
	Long: `Folders exist only on this machine. The server never sees them; deleting
a folder moves its notes to Uncategorized.`,
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders with note counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signedIn(cmd); err != nil {
			return err
		}
		counts := notebox.Counts()
		all := notebox.Folders()
		if asJSON {
			type row struct {
				models.Folder
				Count int `json:"count"`
			}
			rows := make([]row, 0, len(all))
			for _, f := range all {
				rows = append(rows, row{Folder: f, Count: counts[f.ID]})
			}
			return printJSON(cmd.OutOrStdout(), rows)
		}

		active := notebox.ActiveFolder()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tCOLOR\tNOTES")
		for _, f := range all {
			mark := ""
			if f.ID == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", mark, f.ID, f.Name, f.Color, counts[f.ID])
		}
		return w.Flush()
	},
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := notebox.CreateFolder(strings.Join(args, " "), folderColor)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), folder)
		}
		fmt.Fprintln(cmd.OutOrStdout(), folder.ID)
		return nil
	},
}

var foldersDeleteCmd = &cobra.Command{
	Use:   "delete <folder-id>",
	Short: "Delete a folder and move its notes to Uncategorized",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return notebox.DeleteFolder(args[0])
	},
}

var foldersAssignCmd = &cobra.Command{
	Use:   "assign <note-id> <folder-id>",
	Short: "Move a note into a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return notebox.AssignNote(id, args[1])
	},
}

var foldersSelectCmd = &cobra.Command{
	Use:   "select <folder-id>",
	Short: "Filter 'notes list' to one folder for this invocation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signedIn(cmd); err != nil {
			return err
		}
		if err := notebox.SelectFolder(args[0]); err != nil {
			return err
		}
		views := notebox.View("")
		for _, v := range views {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", v.ID, v.Title)
		}
		return nil
	},
}

func init() {
	foldersCreateCmd.Flags().StringVar(&folderColor, "color", "blue", "color: "+strings.Join(models.FolderColors, ", "))

	foldersCmd.AddCommand(foldersListCmd, foldersCreateCmd, foldersDeleteCmd, foldersAssignCmd, foldersSelectCmd)
	rootCmd.AddCommand(foldersCmd)
}
