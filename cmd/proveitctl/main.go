package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"proveit/app"
	"proveit/config"
	"proveit/db"
	"proveit/logger"
	"proveit/utils"
)

var (
	configFlag  string
	verboseFlag bool
	rootCmd     = &cobra.Command{
		Use:           "proveitctl",
		Short:         "Operator tools for the proveit backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "./config/config.yml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(sweepCmd(), refreshStreakCmd(), ensureIndexesCmd(), tokenCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = io.Discard
	if verboseFlag {
		w = os.Stderr
	}
	log, _ := logger.New(w, true, "")
	return cfg, log, nil
}

// withApp builds the application without serving HTTP and shuts it down
// after fn returns.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sweepCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark a user's overdue goals as missed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report := a.Sweeper.Sweep(ctx, userID)
				if report.Failed > 0 {
					_ = printJSON(cmd.OutOrStdout(), report)
					return fmt.Errorf("%d goal(s) could not be swept", report.Failed)
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func refreshStreakCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "refresh-streak",
		Short: "Recompute a user's aggregate streak for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Streaks.RefreshUserStreak(ctx, userID); err != nil {
					return err
				}
				user, err := a.Users.Get(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"userId":        user.ID,
					"currentStreak": user.CurrentStreak,
					"longestStreak": user.LongestStreak,
					"lastStreakDay": user.LastStreakDay,
				})
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func ensureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the MongoDB indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URI == "" {
				return fmt.Errorf("database.uri is not configured")
			}
			ctx := cmd.Context()
			s, err := db.Connect(ctx, cfg.Database.URI, cfg.Database.Name, log)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())
			if err := s.EnsureIndexes(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ensured")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID, email string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user (development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwtSecret is not configured")
			}
			tok, err := utils.GenerateJWTToken(cfg.Auth.JWTSecret, userID, email, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
