/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gameshelf/apiserver/config"
	"github.com/gameshelf/apiserver/internal/db"
	"github.com/gameshelf/apiserver/internal/store"
	"github.com/gameshelf/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedAdminPassword string

// seedCmd bootstraps the first admin account so moderation routes are reachable
// on a fresh deployment.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		username := strings.TrimSpace(os.Getenv("SEED_ADMIN_USERNAME"))
		if username == "" {
			username = "admin"
		}
		password := strings.TrimSpace(seedAdminPassword)
		if password == "" {
			password = strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD"))
		}
		if password == "" {
			return errors.New("seed: admin password is required (--password or SEED_ADMIN_PASSWORD)")
		}

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("seed: open database: %w", err)
		}
		defer conn.Close()

		users := store.NewUserRepository(conn)
		if _, err := users.GetByUsername(cmd.Context(), username); err == nil {
			fmt.Printf("admin %q already exists, nothing to do\n", username)
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("seed: check admin: %w", err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed: hash password: %w", err)
		}

		admin, err := users.Create(cmd.Context(), types.User{
			Username:     username,
			DisplayName:  "Administrator",
			PasswordHash: string(hashed),
			IsAdmin:      true,
			IsModerator:  true,
		})
		if err != nil {
			return fmt.Errorf("seed: create admin: %w", err)
		}

		fmt.Printf("created admin %q (id %d)\n", admin.Username, admin.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedAdminPassword, "password", "", "password for the seeded admin account")
}
