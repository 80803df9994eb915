// Command migrate copies every tournament, player and registration from the
// SQLite (or JSON file) store into Firestore, preserving ids and timestamps.
// Rows already present in Firestore are skipped, so it can be rerun.
package main

import (
	"context"
	"fmt"
	"os"
	"tourney-backend/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Logger = logger
	ctx := logger.WithContext(context.Background())

	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is required")
	}
	databaseID := os.Getenv("FIRESTORE_DATABASE")
	source := getenv("SOURCE_BACKEND", "sqlite")

	// Open source
	var src store.Store
	var from string
	switch source {
	case "file":
		from = getenv("DATA_DIR", "./data")
		fs, err := store.NewFileStore(from)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open file store")
		}
		src = fs
	case "sqlite":
		from = getenv("DATABASE_PATH", "tournaments.db")
		db, err := store.OpenSQLite(ctx, from)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite store")
		}
		if err := db.MigrateSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate sqlite schema")
		}
		src = db
	default:
		logger.Fatal().Str("backend", source).Msg("SOURCE_BACKEND must be sqlite or file")
	}
	defer src.Close()

	// Open destination
	dst, err := store.NewFirestoreStore(ctx, projectID, databaseID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open firestore store")
	}
	defer dst.Close()

	dbName := databaseID
	if dbName == "" {
		dbName = "(default)"
	}
	fmt.Printf("Migrating from %s (%s) -> Firestore (project: %s, database: %s)\n\n", from, source, projectID, dbName)

	sum, err := store.Copy(ctx, src, dst)
	if err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	fmt.Printf("\nDone. Migrated %d tournament(s), %d player(s), %d registration(s); skipped %d existing.\n",
		sum.Tournaments, sum.Players, sum.Registrations, sum.Skipped)
}
