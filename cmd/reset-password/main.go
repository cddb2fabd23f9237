package main

import (
	"context"
	"flag"
	"os"

	"go-pos-admin/internal/config"
	"go-pos-admin/internal/repository"
	"go-pos-admin/pkg/database"
	"go-pos-admin/pkg/logger"

	"github.com/google/uuid"
)

func main() {
	email := flag.String("email", "", "account to reset (defaults to the seeded admin)")
	password := flag.String("password", "", "new password (defaults to the seeded admin password)")
	flag.Parse()

	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "reset-password"}).Error(ctx, "invalid configuration", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{ServiceName: "reset-password", Format: "console"})

	if *email == "" {
		*email = cfg.Seed.AdminEmail
	}
	if *password == "" {
		*password = cfg.Seed.AdminPassword
	}
	if len(*password) < 6 {
		log.Error(ctx, "password must be at least 6 characters", nil)
		os.Exit(1)
	}

	// 2. Setup Database
	db, err := database.Connect(ctx, cfg.DB, log)
	if err != nil {
		log.Error(ctx, "database connection failed", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()

	// 3. Find user
	users := repository.NewUserRepo(db)
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		log.Error(ctx, "user not found", err, logger.Field("email", *email))
		os.Exit(1)
	}

	// 4. Hash and store, then end every open session
	if err := user.SetPassword(*password); err != nil {
		log.Error(ctx, "failed to hash password", err)
		os.Exit(1)
	}
	if err := users.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		log.Error(ctx, "failed to update password", err)
		os.Exit(1)
	}
	if err := users.UpdateTokenVersion(ctx, user.ID, uuid.NewString()); err != nil {
		log.Error(ctx, "failed to reset sessions", err)
		os.Exit(1)
	}

	log.Info(ctx, "password reset", logger.Field("email", *email))
}
