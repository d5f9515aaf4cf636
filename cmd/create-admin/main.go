package main

import (
	"bufio"
	"context"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/database"
	"github.com/queryproctor/backend/internal/logger"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/repository"
	"github.com/queryproctor/backend/internal/service"
)

const minPasswordLen = 6

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Services ───────────────────────────────────────────
	adminService := service.NewAdminService(repository.NewAdminRepository(pool))
	// Only password hashing is used, which needs no Redis.
	authService := service.NewAuthService(cfg, nil)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		os.Exit(1)
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		fmt.Println("Error: A valid email is required")
		os.Exit(1)
	}

	password, err := readPassword("Enter Password: ")
	if err != nil {
		fmt.Println("\nError reading password")
		os.Exit(1)
	}
	if len(password) < minPasswordLen {
		fmt.Printf("Error: Password must be at least %d characters\n", minPasswordLen)
		os.Exit(1)
	}
	confirm, err := readPassword("Confirm Password: ")
	if err != nil || confirm != password {
		fmt.Println("Error: Passwords do not match")
		os.Exit(1)
	}

	// ─── Create ────────────────────────────────────────────────────────
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	admin := &model.Admin{
		Email:        addr.Address,
		Name:         name,
		PasswordHash: hash,
	}
	if err := adminService.Create(ctx, admin); err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' (%s) created with ID: %s\n", admin.Name, admin.Email, admin.ID)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(b), err
}
