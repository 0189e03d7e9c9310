package main

import (
	"flag"
	"log"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/database"

	"github.com/joho/godotenv"
)

func main() {
	createDB := flag.Bool("create-db", false, "Create the target PostgreSQL database if it does not exist")
	reset := flag.Bool("reset", false, "Drop questions, quizzes and articles before migrating")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	if *createDB {
		if database.IsSQLite(cfg.DatabaseURL) {
			log.Println("SQLite database, nothing to create")
		} else {
			created, err := database.CreateDatabase(cfg.DatabaseURL)
			if err != nil {
				log.Fatal("Failed to create database:", err)
			}
			if created {
				log.Println("✅ Database created")
			} else {
				log.Println("Database already exists")
			}
		}
	}

	db, err := database.Connect(&database.Config{URL: cfg.DatabaseURL, LogLevel: cfg.DBLogLevel})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	if *reset {
		log.Println("🔄 Dropping and recreating tables...")
		if err := database.Reset(db); err != nil {
			log.Fatal("Failed to reset database:", err)
		}
		log.Println("✅ Database reset completed successfully")
		return
	}

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Println("✅ Database migrations completed successfully")
}
