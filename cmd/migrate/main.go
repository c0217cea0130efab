package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/JonMunkholm/bookings/internal/config"
	"github.com/JonMunkholm/bookings/internal/storage"
	"github.com/JonMunkholm/bookings/internal/storage/migrations"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
)

const usage = "Available commands: up, down, status, version, reset"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	store, dialect, err := storage.OpenSQL(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	log.Printf("Connected to %s database", cfg.Database.Driver)

	provider, err := migrations.NewProvider(store.DB(), dialect)
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}

	// Get command from arguments (default to "up")
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	log.Printf("Running migrations: %s", command)
	if err := run(ctx, provider, command); err != nil {
		store.Close()
		log.Fatalf("Migration %s failed: %v", command, err)
	}
}

func run(ctx context.Context, provider *goose.Provider, command string) error {
	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return err
		}
		logResults(results...)
		log.Println("Migrations completed successfully")
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			return err
		}
		logResults(result)
		log.Println("Rollback completed successfully")
	case "reset":
		results, err := provider.DownTo(ctx, 0)
		if err != nil {
			return err
		}
		logResults(results...)
		log.Println("All migrations rolled back")
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-8d %-10s %-20s %s\n", st.Source.Version, st.State, applied, st.Source.Path)
		}
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return err
		}
		log.Printf("Current migration version: %d", version)
	default:
		return fmt.Errorf("unknown command %q. %s", command, usage)
	}
	return nil
}

func logResults(results ...*goose.MigrationResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		log.Printf("%s %s (%s)", r.Direction, r.Source.Path, r.Duration)
	}
}
