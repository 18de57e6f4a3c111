// Command seedoperator creates (or resets) the initial admin account so a
// fresh deployment can log in. Reads the same environment as the server.
//
//	SEED_USERNAME=admin SEED_PASSWORD=changeme go run ./cmd/seedoperator
package main

import (
	"os"

	"tallerpos/internal/config"
	"tallerpos/internal/infra"
	"tallerpos/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	username := envOr("SEED_USERNAME", "admin")
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		log.Fatal().Msg("SEED_PASSWORD is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash password")
	}

	var op model.Operator
	err = db.Where("username = ?", username).First(&op).Error
	switch {
	case err == nil:
		op.PasswordHash = string(hash)
		op.Role = model.RoleAdmin
		op.Active = true
		if err := db.Save(&op).Error; err != nil {
			log.Fatal().Err(err).Msg("failed to update admin operator")
		}
		log.Info().Str("username", username).Msg("admin operator password reset")
	case err == gorm.ErrRecordNotFound:
		op = model.Operator{
			Username:     username,
			Name:         "Administrator",
			PasswordHash: string(hash),
			Role:         model.RoleAdmin,
			Active:       true,
		}
		if err := db.Create(&op).Error; err != nil {
			log.Fatal().Err(err).Msg("failed to create admin operator")
		}
		log.Info().Str("username", username).Msg("admin operator created")
	default:
		log.Fatal().Err(err).Msg("lookup failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
