// cmd/sweep - One-shot backlog sweep over unprocessed achievement events
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tailtag/achievements"
	"tailtag/database"
	"tailtag/services"

	"github.com/joho/godotenv"
)

func main() {
	limitPerBatch := flag.Int("limit", achievements.DefaultLimitPerBatch, "events claimed per batch")
	maxBatches := flag.Int("batches", achievements.DefaultMaxBatches, "maximum batches per sweep")
	notify := flag.Bool("notify", true, "write notification rows for awards")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	database.InitDB()
	defer database.CloseDB()

	var hook achievements.AwardHook
	if *notify {
		services.InitNotifier()
		hook = services.GetNotifier().OnAwardGranted
	}

	store := achievements.NewDBStore(database.GetDB())
	processor := achievements.New(store, log.Default(), hook)

	summary, err := processor.ProcessPendingEvents(context.Background(), achievements.BatchOptions{
		LimitPerBatch: *limitPerBatch,
		MaxBatches:    *maxBatches,
	})
	if err != nil {
		log.Printf("Sweep failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Processed %d event(s)\n", summary.Processed)
	for _, result := range summary.Results {
		if result.Skipped {
			fmt.Printf("  %s (%s): skipped\n", result.EventID, result.EventType)
			continue
		}
		fmt.Printf("  %s (%s): %d award(s)\n", result.EventID, result.EventType, len(result.Awards))
	}
}
