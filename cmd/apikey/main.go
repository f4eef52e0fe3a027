package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"spatia/internal/archive"
	"spatia/internal/infra"
	"spatia/internal/infra/credentials"
)

// apikey stores the World Labs API key in integration_tokens so the API can
// start without WORLDLABS_API_KEY in its environment.
func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		labelFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "World Labs API key (falls back to WORLDLABS_API_KEY)")
	flag.StringVar(&labelFlag, "label", "", "Optional note stored next to the key")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("WORLDLABS_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "World Labs API key is required via -key or WORLDLABS_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "apikey").Logger()
	runner := infra.NewSQLRunner(pool, &logger)
	if err := archive.NewRecorder(runner).EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare schema: %v\n", err)
		os.Exit(1)
	}

	props := map[string]any{"stored_at": time.Now().UTC().Format(time.RFC3339)}
	if label := strings.TrimSpace(labelFlag); label != "" {
		props["label"] = label
	}
	if err := credentials.NewStore(runner).SetWorldLabsAPIKey(ctx, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("World Labs API key stored successfully")
}
