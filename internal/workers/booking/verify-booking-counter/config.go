package verifybookingcounter

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Enabled               bool          `mapstructure:"enabled"`
	MaxJobsActive         int           `mapstructure:"max_jobs_active"`
	Timeout               time.Duration `mapstructure:"timeout"`
	CounterKeyPattern     string        `mapstructure:"counter_key_pattern"`
	TotalBookingsProperty string        `mapstructure:"total_bookings_property"`
	AlertTopicARN         string        `mapstructure:"alert_topic_arn"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:               true,
		MaxJobsActive:         5,
		Timeout:               30 * time.Second,
		CounterKeyPattern:     "exam:{id}:bookings",
		TotalBookingsProperty: "total_bookings",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if !strings.Contains(c.CounterKeyPattern, "{id}") {
		return fmt.Errorf("counter_key_pattern must contain {id}")
	}
	if c.TotalBookingsProperty == "" {
		return fmt.Errorf("total_bookings_property is required")
	}
	return nil
}
