package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"chatstream/internal/config"
	"chatstream/internal/services/ai"
)

// Connectivity check for the configured completion provider. Run it after
// changing LLM_API_KEY, LLM_BASE_URL, or LLM_MODEL to confirm the stack can
// reach the provider and stream a reply.
func main() {
	cfg := config.Load()

	if cfg.LLMAPIKey == "" {
		log.Fatal("LLM_API_KEY not set in environment")
	}
	fmt.Printf("provider: %s\n", cfg.LLMBaseURL)
	fmt.Printf("model:    %s\n", cfg.LLMModel)

	aiConfig := ai.DefaultConfig()
	aiConfig.LLMKey = cfg.LLMAPIKey
	aiConfig.LLMBaseURL = cfg.LLMBaseURL
	aiConfig.Timeout = cfg.ProviderTimeout
	provider, err := ai.NewOpenAIProvider(aiConfig)
	if err != nil {
		log.Fatalf("provider init failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages := []ai.ChatMessage{{Role: "user", Content: "Reply with the single word: pong"}}

	start := time.Now()
	var received int
	err = provider.StreamCompletion(ctx, cfg.LLMModel, messages, func(delta string) error {
		received += len(delta)
		fmt.Print(delta)
		return nil
	})
	fmt.Println()
	if err != nil {
		log.Fatalf("stream failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
	}
	if received == 0 {
		fmt.Fprintln(os.Stderr, "warning: stream completed but no content was received")
		os.Exit(1)
	}
	fmt.Printf("ok: %d bytes in %s\n", received, time.Since(start).Round(time.Millisecond))
}
