package main

import (
	"fmt"
	"time"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/pkg/utils"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.LoadConfig()
		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		closeDB(db)
		fmt.Println("Schema is up to date")
		return nil
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run a single dispatcher tick and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApplication(cmd.Context(), config.LoadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.dispatcher.RecoverStale(cmd.Context()); err != nil {
			return err
		}
		report := a.dispatcher.Tick(cmd.Context())
		fmt.Printf("due=%d published=%d retried=%d failed=%d skipped=%d errors=%d\n",
			report.Due, report.Published, report.Retried, report.Failed, report.Skipped, report.Errors)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := utils.GenerateToken(config.LoadConfig().SecretKey, args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(migrateCmd, dispatchCmd, tokenCmd)
}
