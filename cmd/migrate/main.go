// Command migrate applies the database schema. Connect skips auto-migration
// in production, so deployments run this explicitly before starting the API.
package main

import (
	"log"

	"snipted/internal/config"
	"snipted/internal/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Schema migration complete")
}
