// Command main runs the database seeder for Snipted.
package main

import (
	"flag"
	"log"

	"snipted/internal/config"
	"snipted/internal/database"
	"snipted/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numSnippets := flag.Int("snippets", 100, "Number of snippets to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(database.DB, seed.Options{
		NumUsers:    *numUsers,
		NumSnippets: *numSnippets,
		ShouldClean: *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
