package quota

import "fmt"

type Config struct {
	// DailyMessageLimit is the number of admitted messages per user per UTC
	// calendar day.
	DailyMessageLimit int
}

func (c *Config) Validate() error {
	if c.DailyMessageLimit <= 0 {
		return fmt.Errorf("daily_message_limit must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		DailyMessageLimit: 10,
	}
}
