package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	backupVerify  string
	backupRestore string
	backupOutput  string
	backupList    bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, verify or unpack database backups",
	Long: `Create a sealed snapshot of the database in BACKUP_DIR and prune
snapshots older than BACKUP_RETENTION_DAYS.

Examples:
  # Take a snapshot now
  notebox-server backup

  # Check a snapshot against its checksum
  notebox-server backup --verify backups/notebox_20240101T000000.000000000.db.gz.enc

  # Unpack a snapshot into a database file
  notebox-server backup --restore <file> --output restored.db`,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupVerify, "verify", "", "verify this backup file")
	backupCmd.Flags().StringVar(&backupRestore, "restore", "", "unpack this backup file")
	backupCmd.Flags().StringVar(&backupOutput, "output", "restored.db", "destination of --restore")
	backupCmd.Flags().BoolVar(&backupList, "list", false, "list existing backups")
	backupCmd.MarkFlagsMutuallyExclusive("verify", "restore", "list")
}

func runBackup(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	m, err := env.backupManager()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch {
	case backupList:
		files, err := m.List()
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		return nil

	case backupVerify != "":
		if err := m.Verify(backupVerify); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
		return nil

	case backupRestore != "":
		data, err := m.Open(backupRestore)
		if err != nil {
			return err
		}
		if err := os.WriteFile(backupOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", backupOutput, err)
		}
		fmt.Fprintf(out, "Restored to %s\n", backupOutput)
		return nil
	}

	path, err := m.Create(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := m.Prune(); err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	return nil
}
