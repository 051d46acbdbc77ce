// Command session-sweeper deactivates expired session rows on a cron
// schedule and logs how many sessions remain active.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/casetrail/authd/pkg/auth"
)

var (
	dbURL    = flag.String("db-url", getEnv("AUTHD_POSTGRES_URL", "postgres://localhost/authd?sslmode=disable"), "PostgreSQL connection URL")
	schedule = flag.String("schedule", "*/15 * * * *", "Cron schedule for the sweep (default: every 15 minutes)")
	runOnce  = flag.Bool("run-once", false, "Run one sweep and exit (for testing)")
)

func main() {
	flag.Parse()

	// Connect to database
	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Verify connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	store := auth.NewStore(db)

	if *runOnce {
		if err := sweep(store); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		return
	}

	c := cron.New()

	_, err = c.AddFunc(*schedule, func() {
		if err := sweep(store); err != nil {
			log.Printf("Sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule sweep: %v", err)
	}

	c.Start()
	log.Printf("Session sweeper started with schedule %q", *schedule)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down")
	<-c.Stop().Done()
}

func sweep(store *auth.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()

	swept, err := store.DeactivateExpiredSessions(ctx, now)
	if err != nil {
		return err
	}

	active, err := store.CountActiveSessions(ctx, now)
	if err != nil {
		return err
	}

	log.Printf("Swept %d expired sessions, %d still active", swept, active)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
