package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"delivery-backend/internal/config"
	"delivery-backend/internal/db"
	"delivery-backend/internal/logger"
	"delivery-backend/internal/services"
	"delivery-backend/internal/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "deliveryctl",
	Short: "Operator tools for the delivery backend",
	Long:  `deliveryctl mints bearer tokens, migrates the schema and repairs rider availability for the delivery backend.`,
}

var (
	tokenUser  string
	tokenEmail string
	tokenRole  string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.JWT.TTL
		}
		token, err := utils.GenerateJWT(cfg.JWT.Secret, tokenUser, tokenEmail, tokenRole, ttl)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDatabase()
		if err != nil {
			return err
		}
		if err := db.Migrate(database); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [riderId]",
	Short: "Re-derive rider availability from active deliveries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, log, err := openDatabase()
		if err != nil {
			return err
		}
		riders := services.NewRiderService(database, log)
		ctx := context.Background()

		if len(args) == 1 {
			available, err := riders.Reconcile(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s available=%t\n", args[0], available)
			return nil
		}

		fixed, err := riders.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "corrected %d rider(s)\n", fixed)
		return nil
	},
}

func openDatabase() (*gorm.DB, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	database, err := db.Connect(cfg.Database, log, 1, 0)
	if err != nil {
		return nil, nil, err
	}
	return database, log, nil
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "admin", "user id placed in the token")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email placed in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", utils.RoleAdmin, "role placed in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default JWT_TTL_HOURS)")

	rootCmd.AddCommand(tokenCmd, migrateCmd, reconcileCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
