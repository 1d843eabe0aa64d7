package chat

import (
	"fmt"
	"time"
)

type Config struct {
	// Model Configuration
	StreamModel string // AI model for streaming completions

	// Context Configuration
	HistoryWindow int // how many recent messages are sent to the provider

	// Performance Configuration
	StreamTimeout time.Duration // upper bound on one provider stream
	DBSaveTimeout time.Duration // timeout for persistence writes after stream end
}

func (c *Config) Validate() error {
	if c.StreamModel == "" {
		return fmt.Errorf("stream_model is required")
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("history_window must be positive")
	}
	if c.HistoryWindow > 100 {
		return fmt.Errorf("history_window cannot exceed 100")
	}
	if c.StreamTimeout <= 0 {
		return fmt.Errorf("stream_timeout must be positive")
	}
	if c.DBSaveTimeout <= 0 {
		return fmt.Errorf("db_save_timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		StreamModel:   "gpt-4o-mini",
		HistoryWindow: 20,
		StreamTimeout: 120 * time.Second,
		DBSaveTimeout: 5 * time.Second,
	}
}
