package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/swastha-auth/config"
	"github.com/oksasatya/swastha-auth/internal/application"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
	pginfra "github.com/oksasatya/swastha-auth/internal/infrastructure/postgres"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
)

// seed creates a verified admin account. Re-running with an existing email
// only makes sure the account is verified.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	email := flag.String("email", "admin@swastha.local", "admin email")
	password := flag.String("password", "Admin@1234", "admin password")
	username := flag.String("username", "admin", "admin username")
	phone := flag.String("phone", "9800000000", "admin phone number (10 digits)")
	flag.Parse()

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2, MinConns: 1, MaxConnLife: cfg.DBMaxConnLife})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)
	if err := security.NewPasswordPolicy(hasher).ValidateStrength(*password); err != nil {
		log.Fatalf("refusing weak seed password: %v", err)
	}
	store := application.NewCredentialStore(pginfra.NewAccountRepository(pool), hasher, cfg.PasswordExpiryDays, cfg.PasswordExpiryUnit)

	acc, err := store.Create(ctx, application.NewAccount{
		Email:       *email,
		Username:    *username,
		PhoneNumber: *phone,
		Password:    *password,
		IsAdmin:     true,
		IsVerified:  true,
	})
	switch {
	case errors.Is(err, security.ErrDuplicateIdentity):
		acc, err = store.Lookup(ctx, *email)
		if err != nil {
			log.Fatalf("failed to load existing admin: %v", err)
		}
		if err := store.MarkVerified(ctx, acc.ID); err != nil {
			log.Fatalf("failed to verify existing admin: %v", err)
		}
		fmt.Printf("admin already present: id=%s email=%s\n", acc.ID, acc.Email)
	case err != nil:
		log.Fatalf("failed to seed admin: %v", err)
	default:
		fmt.Printf("seeded admin: id=%s email=%s username=%s\n", acc.ID, acc.Email, acc.Username)
	}
}
