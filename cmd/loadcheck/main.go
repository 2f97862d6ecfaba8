package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/scorekeep/internal/loadcheck"
)

// Default configuration constants.
const (
	defaultIdentities  = 200
	defaultComments    = 100
	defaultRetention   = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		category   = flag.String("category", "", "Leaderboard category (default: a fresh random one)")
		collection = flag.String("collection", "general", "Collection for the commented submission")
		identities = flag.Int("identities", defaultIdentities, "Distinct identities submitting scores")
		comments   = flag.Int("comments", defaultComments, "Concurrent comments on one submission")
		retention  = flag.Int("retention", defaultRetention, "Leaderboard retention configured on the service")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent HTTP workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile    = flag.String("log", "", "Also append logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadcheck.ShowHelp()
		return
	}

	if err := loadcheck.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadcheck.Config{
		BaseURL:    *baseURL,
		Category:   *category,
		Collection: *collection,
		Identities: *identities,
		Comments:   *comments,
		Retention:  *retention,
		Workers:    *workers,
		Timeout:    *timeout,
		Verbose:    *verbose,
	}
	if _, err := loadcheck.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Load check failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
