package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adobservatory/adharvest/internal/browser"
	"github.com/adobservatory/adharvest/internal/config"
	"github.com/adobservatory/adharvest/internal/db"
	"github.com/adobservatory/adharvest/internal/notify"
	"github.com/adobservatory/adharvest/internal/retriever"
	"github.com/adobservatory/adharvest/internal/storage"
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
		fmt.Println("Usage: adretriever <config.yaml> [run|migrate]")
		fmt.Println("       adretriever version")
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
		runPipeline(configPath)
	case "migrate":
		runMigrations(configPath)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: run, migrate, version")
		os.Exit(1)
	}
}

func runPipeline(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// SIGINT/SIGTERM cancel the context; the pipeline releases its batch
	// and Run returns nil.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	client, err := storage.NewClient(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to build object store client: %v", err)
	}

	notifier := notify.NewSlack(cfg.Logging.SlackURL, cfg.Logging.SlackUserIDToInclude)
	sessions := browser.NewManager(newBrowserContext(cfg.Browser), newExtractor(cfg.Browser), 0)

	pipeline := retriever.New(retriever.Params{
		Store:                database,
		Images:               storage.NewStore(client, cfg.Storage.ImagesBucket, cfg.Storage.Retry),
		Videos:               storage.NewStore(client, cfg.Storage.VideosBucket, cfg.Storage.Retry),
		Screenshots:          storage.NewStore(client, cfg.Storage.ScreenshotsBucket, cfg.Storage.Retry),
		Sessions:             sessions,
		Notifier:             notifier,
		WorkerID:             database.WorkerID(),
		ChunkSize:            cfg.Limits.BatchSize,
		MaxVideoDownloadSize: cfg.Limits.MaxVideoDownloadSize,
	})

	if cfg.Server.StatsAddr != "" {
		pipeline.StartStatsServer(ctx, cfg.Server.StatsAddr)
	}

	log.Printf("adretriever %s starting as worker %s", Version, database.WorkerID())
	if err := pipeline.Run(ctx); err != nil {
		alertFatal(notifier, err)
		log.Fatalf("Pipeline failed: %v", err)
	}
	log.Print("Pipeline stopped")
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

// alertFatal tells the operator channel the worker died. Best effort: the
// process is about to exit non-zero either way.
func alertFatal(notifier *notify.Slack, err error) {
	msg := fmt.Sprintf(":rotating_light: adretriever on %s died: %v", notify.HostFQDN(), err)
	if nerr := notifier.Notify(context.Background(), msg); nerr != nil {
		log.Printf("Sending failure alert: %v", nerr)
	}
}

func printVersion() {
	fmt.Printf("adretriever %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}
