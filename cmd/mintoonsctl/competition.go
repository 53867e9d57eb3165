package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mintoons/internal/cache"
	"mintoons/internal/models"
	"mintoons/internal/repository"
	"mintoons/internal/service"
)

var (
	competitionMonth string
	competitionTitle string
	competitionTheme string
	competitionID    int64
	resultsFile      string
)

var competitionCmd = &cobra.Command{
	Use:   "competition",
	Short: "Manage monthly competitions",
}

var competitionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create and activate the competition for a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCompetitions(cmd.Context(), func(competitions *service.CompetitionService) error {
			comp, err := competitions.Create(cmd.Context(), competitionMonth, competitionTitle, competitionTheme)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created competition %d for %s (%s)\n", comp.ID, comp.Month, comp.Phase)
			return nil
		})
	},
}

var competitionAdvanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Move a competition to its next phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCompetitions(cmd.Context(), func(competitions *service.CompetitionService) error {
			comp, err := competitions.Advance(cmd.Context(), competitionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Competition %d is now in %s\n", comp.ID, comp.Phase)
			return nil
		})
	},
}

var competitionResultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Record external judging results from a JSON or YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := readResults(resultsFile)
		if err != nil {
			return err
		}
		return withCompetitions(cmd.Context(), func(competitions *service.CompetitionService) error {
			updated, err := competitions.RecordResults(cmd.Context(), competitionID, results)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d results for competition %d\n", updated, competitionID)
			return nil
		})
	},
}

func init() {
	competitionCreateCmd.Flags().StringVar(&competitionMonth, "month", "", "Competition month as YYYY-MM")
	competitionCreateCmd.Flags().StringVar(&competitionTitle, "title", "", "Competition title")
	competitionCreateCmd.Flags().StringVar(&competitionTheme, "theme", "", "Writing theme")
	competitionCreateCmd.MarkFlagRequired("month")
	competitionCreateCmd.MarkFlagRequired("title")

	competitionAdvanceCmd.Flags().Int64Var(&competitionID, "id", 0, "Competition ID")
	competitionAdvanceCmd.MarkFlagRequired("id")

	competitionResultsCmd.Flags().Int64Var(&competitionID, "id", 0, "Competition ID")
	competitionResultsCmd.Flags().StringVarP(&resultsFile, "file", "f", "", "Results file (.json, .yaml or .yml)")
	competitionResultsCmd.MarkFlagRequired("id")
	competitionResultsCmd.MarkFlagRequired("file")

	competitionCmd.AddCommand(competitionCreateCmd)
	competitionCmd.AddCommand(competitionAdvanceCmd)
	competitionCmd.AddCommand(competitionResultsCmd)
}

// withCompetitions builds a competition service on the configured database.
// The Redis cache is used when configured so the server sees phase changes.
func withCompetitions(ctx context.Context, fn func(*service.CompetitionService) error) error {
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	mailer, err := service.NewEmailService(ctx, cfg.Email, cfg.AppURL, log)
	if err != nil {
		return err
	}
	mailer.UseSettings(repository.NewSettingsRepository(db))

	competitionCache, closeCache := connectCache(ctx)
	defer closeCache()

	return fn(service.NewCompetitionService(db, competitionCache, mailer, log))
}

func connectCache(ctx context.Context) (cache.CompetitionCache, func()) {
	if cfg.Redis.Addr == "" {
		return cache.Noop{}, func() {}
	}
	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unreachable, cached competition may be stale until it expires", zap.Error(err))
		return cache.Noop{}, func() {}
	}
	return cache.NewRedisCache(rdb, cfg.Redis.TTL, log), func() { rdb.Close() }
}

type resultsDocument struct {
	Results []models.JudgingResult `json:"results" yaml:"results"`
}

// readResults accepts either {"results": [...]} or a bare list
func readResults(path string) ([]models.JudgingResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	return parseResults(data, filepath.Ext(path))
}

func parseResults(data []byte, ext string) ([]models.JudgingResult, error) {
	unmarshal := json.Unmarshal
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var doc resultsDocument
	if err := unmarshal(data, &doc); err == nil && len(doc.Results) > 0 {
		return doc.Results, nil
	}

	var list []models.JudgingResult
	if err := unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing results file: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("results file contains no results")
	}
	return list, nil
}
