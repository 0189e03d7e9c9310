package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/generator"

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := generator.NewGeminiClient(cfg.GeminiBaseURL, cfg.GoogleAPIKey, cfg.GeminiModel)
	models, err := client.ListModels(ctx)
	if err != nil {
		log.Fatal("Failed to list models:", err)
	}

	fmt.Println("Available models:")
	for _, m := range models {
		marker := " "
		if strings.TrimPrefix(m.Name, "models/") == client.Model() {
			marker = "*"
		}
		fmt.Printf("%s %s\t%s\n", marker, m.Name, m.DisplayName)
	}
}
