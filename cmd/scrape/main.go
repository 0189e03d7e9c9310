package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/extractor"

	"github.com/joho/godotenv"
)

func main() {
	articleURL := flag.String("url", "https://en.wikipedia.org/wiki/Alan_Turing", "Wikipedia article to scrape")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	fmt.Printf("Scraping: %s\n", *articleURL)

	doc, err := extractor.NewExtractor(cfg.ScrapeTimeoutDuration()).Extract(context.Background(), *articleURL)
	if err != nil {
		log.Fatalf("Error scraping article: %v", err)
	}

	fmt.Printf("Title: %s\n", doc.Title)
	fmt.Printf("Summary: %s\n", preview(doc.Summary, 100))
	fmt.Printf("Sections (%d): %v\n", len(doc.Sections), head(doc.Sections, 5))
	fmt.Printf("Entities (%d): %v\n", len(doc.KeyEntities.People), head(doc.KeyEntities.People, 5))
	fmt.Printf("Full text length: %d\n", len([]rune(doc.FullText)))
	fmt.Printf("Raw HTML length: %d\n", len(doc.RawHTML))
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
