package main

import (
	"fmt"
	"os"

	"github.com/oggyb/muzz-match/internal/auth"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/logger"
)

// Seeds demo data and prints a development token per user, so the API can
// be tried with curl or a WebSocket client right away.
func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	users, err := db.SeedTestData(database)
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	for _, u := range users {
		token, err := verifier.Issue(u.ID)
		if err != nil {
			log.Error("failed to issue token", "user", u.ID, "err", err)
			os.Exit(1)
		}
		fmt.Printf("%-8s %-6s wants %-6s id=%s\n  token=%s\n", u.Name, u.Gender, u.Preference, u.ID, token)
	}

	log.Info("seeding completed", "users", len(users))
}
