package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amirk1998/notebox/internal/app"
)

var (
	noteTitle   string
	noteContent string
	noteFolder  string
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage notes",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, optionally only those in one folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signedIn(cmd); err != nil {
			return err
		}
		views := notebox.View(noteFolder)
		if asJSON {
			return printJSON(cmd.OutOrStdout(), views)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFOLDER\tTITLE\tUPDATED")
		for _, v := range views {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.ID, v.Folder.Name, v.Title, v.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var notesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := signedIn(cmd); err != nil {
			return err
		}
		v, ok := findNote(id)
		if !ok {
			return fmt.Errorf("note %d not found", id)
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), v)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n[%s]\n\n%s\n", v.Title, v.Folder.Name, v.Content)
		return nil
	},
}

var notesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signedIn(cmd); err != nil {
			return err
		}
		note, err := notebox.CreateNote(cmd.Context(), noteTitle, noteContent, noteFolder)
		if note == nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), note)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created note %d\n", note.ID)
		return err
	},
}

var notesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a note's title, content or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := signedIn(cmd); err != nil {
			return err
		}

		current, ok := findNote(id)
		if !ok {
			return fmt.Errorf("note %d not found", id)
		}
		title, content := current.Title, current.Content
		if cmd.Flags().Changed("title") {
			title = noteTitle
		}
		if cmd.Flags().Changed("content") {
			content = noteContent
		}

		note, err := notebox.UpdateNote(cmd.Context(), id, title, content, noteFolder)
		if note == nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated note %d\n", note.ID)
		return err
	},
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := signedIn(cmd); err != nil {
			return err
		}
		return notebox.DeleteNote(cmd.Context(), id)
	},
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func findNote(id int) (app.NoteView, bool) {
	for _, v := range notebox.View("all") {
		if v.ID == id {
			return v, true
		}
	}
	return app.NoteView{}, false
}

func init() {
	notesListCmd.Flags().StringVar(&noteFolder, "folder", "", "folder id (default: the selected folder)")

	notesCreateCmd.Flags().StringVar(&noteTitle, "title", "", "note title")
	notesCreateCmd.Flags().StringVar(&noteContent, "content", "", "note content")
	notesCreateCmd.Flags().StringVar(&noteFolder, "folder", "", "folder id (default: uncategorized)")
	notesCreateCmd.MarkFlagRequired("title")

	notesUpdateCmd.Flags().StringVar(&noteTitle, "title", "", "new title")
	notesUpdateCmd.Flags().StringVar(&noteContent, "content", "", "new content")
	notesUpdateCmd.Flags().StringVar(&noteFolder, "folder", "", "move to this folder id")

	notesCmd.AddCommand(notesListCmd, notesShowCmd, notesCreateCmd, notesUpdateCmd, notesDeleteCmd)
	rootCmd.AddCommand(notesCmd)
}
