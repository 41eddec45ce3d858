package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/tasktracker/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/tasktracker/internal/repository"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
	"github.com/aryan0dhankhar/tasktracker/internal/security/auth"
	"github.com/aryan0dhankhar/tasktracker/internal/service"
	"github.com/aryan0dhankhar/tasktracker/pkg/config"
	"github.com/aryan0dhankhar/tasktracker/pkg/database"
)

const seedPassword = "password123"

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "db", Short: "Manage the Postgres schema"}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, pool *database.ConnectionPool, log *slog.Logger) error {
				return database.Migrate(ctx, pool.GetDB(), log)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop every table and recreate the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, pool *database.ConnectionPool, log *slog.Logger) error {
				return database.Reset(ctx, pool.GetDB(), log)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create the demo admins admin1 and admin2",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), seed)
		},
	})

	return cmd
}

func withDB(ctx context.Context, fn func(context.Context, *database.ConnectionPool, *slog.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.LogLevel)

	pool, err := database.NewConnectionPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool, log)
}

func seed(ctx context.Context, pool *database.ConnectionPool, log *slog.Logger) error {
	if err := database.Migrate(ctx, pool.GetDB(), log); err != nil {
		return err
	}

	db := pool.GetDB()
	users := repository.NewPostgresUserRepository(db, log)
	employees := repository.NewPostgresEmployeeRepository(db, log)
	gate := security.NewGate(log)
	registry := service.NewTenantRegistry(users, log)
	// seeded sessions are never used, so any secret will do
	tokens := auth.NewTokenManager("seed", "tasktracker", 0)
	authService := service.NewAuthService(users, employees, registry,
		auth.NewBcryptHasher(bcrypt.DefaultCost), tokens, gate, nil, log)

	for _, name := range []string{"admin1", "admin2"} {
		session, err := authService.Register(ctx, service.RegisterInput{
			Username: name,
			Email:    name + "@example.com",
			Password: seedPassword,
			Role:     "admin",
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		fmt.Printf("✓ %s / %s  admin code: %s\n", name, seedPassword, session.Identity.TenantCode())
	}
	return nil
}
