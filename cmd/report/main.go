// Package main renders the search report and leaderboard CSV from persisted
// result tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"formula-lab/internal/config"
	"formula-lab/internal/orchestrator"
	"formula-lab/internal/reporting"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	outputDir := flag.String("output-dir", "", "Override results.dir")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	if *outputDir != "" {
		cfg.Results.Dir = *outputDir
	}

	store, closeStore, err := orchestrator.OpenResultStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening result store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	r, err := reporting.NewGenerator(store).Search(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading results: %v\n", err)
		os.Exit(1)
	}
	if r.CoarseTrials == 0 && r.FineTuneTrials == 0 {
		fmt.Println("No search results found; run the search first.")
		return
	}

	files, err := reporting.WriteSearch(cfg.Results.Dir, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Report generated successfully:")
	for _, f := range files {
		fmt.Printf("  - %s\n", f)
	}
}
