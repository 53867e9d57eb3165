package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mintoons/internal/service"
)

var (
	backupOutput string
	backupInput  string
	backupClear  bool
	backupYes    bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import the database as JSON",
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every table to a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		output := backupOutput
		if output == "" {
			output = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
		}
		if dir := filepath.Dir(output); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}

		log.Info("Exporting database", zap.String("output", output))
		if err := service.NewBackupService(db, nil, log).ExportToFile(ctx, output); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		info, err := os.Stat(output)
		if err == nil {
			fmt.Printf("Export complete: %s (%.2f MB)\n", output, float64(info.Size())/1024/1024)
		}
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a JSON backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(backupInput); err != nil {
			return fmt.Errorf("input file: %w", err)
		}
		if backupClear && !backupYes {
			fmt.Fprint(cmd.OutOrStdout(), "WARNING: this deletes all existing data. Type 'yes' to confirm: ")
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "Import cancelled")
				return nil
			}
		}

		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		competitionCache, closeCache := connectCache(ctx)
		defer closeCache()

		log.Info("Importing database", zap.String("input", backupInput), zap.Bool("clear", backupClear))
		if err := service.NewBackupService(db, competitionCache, log).ImportFile(ctx, backupInput, backupClear); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Import complete")
		return nil
	},
}

func init() {
	backupExportCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output file (default backup_YYYYMMDD_HHMMSS.json)")

	backupImportCmd.Flags().StringVarP(&backupInput, "input", "i", "", "Backup file to import")
	backupImportCmd.Flags().BoolVar(&backupClear, "clear", false, "Delete existing data before importing")
	backupImportCmd.Flags().BoolVarP(&backupYes, "yes", "y", false, "Skip the --clear confirmation")
	backupImportCmd.MarkFlagRequired("input")

	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)
}
