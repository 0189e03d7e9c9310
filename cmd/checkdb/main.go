package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/database"
	"wiki-quiz/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	db, err := database.Connect(&database.Config{URL: cfg.DatabaseURL, LogLevel: "silent"})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	stats, err := store.New(db).ArticleStats(context.Background())
	if err != nil {
		log.Fatal("Failed to read articles:", err)
	}

	if len(stats) == 0 {
		fmt.Println("No articles stored.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tQUIZZES\tQUESTIONS")
	var quizzes, questions int64
	for _, s := range stats {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", s.ArticleID, s.Title, s.QuizCount, s.QuestionCount)
		quizzes += s.QuizCount
		questions += s.QuestionCount
	}
	w.Flush()
	fmt.Printf("\n%d articles, %d quizzes, %d questions\n", len(stats), quizzes, questions)
}
