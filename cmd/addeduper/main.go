package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adobservatory/adharvest/internal/cluster"
	"github.com/adobservatory/adharvest/internal/config"
	"github.com/adobservatory/adharvest/internal/db"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: addeduper <config.yaml> [run|migrate]")
		fmt.Println("       addeduper version")
		os.Exit(1)
	}
	if os.Args[1] == "version" {
		printVersion()
		return
	}

	configPath := os.Args[1]
	command := "run"
	if len(os.Args) > 2 {
		command = os.Args[2]
	}

	switch command {
	case "run":
		runClusterer(configPath)
	case "migrate":
		runMigrations(configPath)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: run, migrate, version")
		os.Exit(1)
	}
}

func runClusterer(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Printf("addeduper %s starting", Version)
	clusterer := cluster.NewClusterer(database)
	texts, images, err := clusterer.Run(ctx)
	if err != nil {
		log.Fatalf("Clustering failed: %v", err)
	}
	log.Printf("Assigned %d ads to text clusters and %d ads to image clusters", len(texts), len(images))
}

func runMigrations(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("Running database migrations...")
	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func printVersion() {
	fmt.Printf("addeduper %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}
