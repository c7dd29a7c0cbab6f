// Package main implements the notebox CLI against the NoteBox HTTP API.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amirk1998/notebox/internal/app"
	"github.com/amirk1998/notebox/internal/client"
	"github.com/amirk1998/notebox/internal/config"
	"github.com/amirk1998/notebox/internal/folders"
	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/notes"
	"github.com/amirk1998/notebox/internal/session"
	"github.com/amirk1998/notebox/internal/storage"
)

var version = "dev"

var (
	// apiURL and stateDir override NOTEBOX_API_URL and NOTEBOX_STATE_DIR
	apiURL   string
	stateDir string
	asJSON   bool

	notebox *app.App
	log     *logger.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notebox",
	Short: "NoteBox command-line client",
	Long: `notebox talks to a NoteBox server. The session cookie and the local
folder layout are kept in the state directory between invocations.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		printNotices(cmd.ErrOrStderr())
		if log != nil {
			log.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "NoteBox API URL (default $NOTEBOX_API_URL or http://localhost:5000)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for local state (default $NOTEBOX_STATE_DIR)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err = logger.New(cfg.Logger, "")
	if err != nil {
		return err
	}

	store, err := storage.NewFileStore(filepath.Join(cfg.StateDir, "state.json"))
	if err != nil {
		return err
	}

	api, err := client.New(
		client.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout, UserAgent: "notebox-cli/" + version},
		client.WithCookieFile(filepath.Join(cfg.StateDir, "cookies.json")),
		client.WithLogger(log),
	)
	if err != nil {
		return err
	}

	notebox = app.New(api, session.New(store, log), notes.New(api), folders.New(store, log), log)
	return nil
}

// signedIn restores the stored session and loads the note list
func signedIn(cmd *cobra.Command) error {
	_, ok, err := notebox.Start(cmd.Context())
	if !ok {
		if err != nil {
			return fmt.Errorf("session expired, please log in again: %w", err)
		}
		return fmt.Errorf("not logged in, run 'notebox login'")
	}
	return err
}

func printNotices(w io.Writer) {
	if notebox == nil {
		return
	}
	for _, n := range notebox.Notices() {
		if n.Kind == app.NoticeSuccess {
			fmt.Fprintln(w, n.Message)
		}
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readSecret returns flagValue or, when it is empty, one line from stdin
func readSecret(cmd *cobra.Command, prompt, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s", strings.TrimSuffix(strings.ToLower(prompt), ": "))
	}
	return strings.TrimRight(line, "\r\n"), nil
}
