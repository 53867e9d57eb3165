package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mintoons/internal/repository"
	"mintoons/internal/service"
)

var (
	badWordsURL   string
	badWordsForce bool
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage monthly story quotas",
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset every user's monthly story count and send reset emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
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

		result, err := service.NewAdminService(db, nil, mailer, log).ResetMonthlyQuotas(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %d users, sent %d emails\n", result.UsersReset, result.EmailsSent)
		return nil
	},
}

var moderationCmd = &cobra.Command{
	Use:   "moderation",
	Short: "Manage the content filter",
}

var moderationSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Download the bad words list into the filter",
	Long:  "Download the bad words list into the filter. An already populated filter is left alone unless --force is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		url := badWordsURL
		if url == "" {
			url = cfg.Moderation.BadWordsURL
		}
		if badWordsForce {
			if err := db.ClearBadWords(ctx); err != nil {
				return err
			}
		}
		if err := db.SeedBadWords(ctx, url, log); err != nil {
			return err
		}

		count, err := db.CountBadWords(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Filter holds %d words\n", count)
		return nil
	},
}

func init() {
	moderationSeedCmd.Flags().StringVar(&badWordsURL, "url", "", "Word list URL (defaults to BAD_WORDS_URL)")
	moderationSeedCmd.Flags().BoolVar(&badWordsForce, "force", false, "Replace an existing list")

	quotaCmd.AddCommand(quotaResetCmd)
	moderationCmd.AddCommand(moderationSeedCmd)
}
