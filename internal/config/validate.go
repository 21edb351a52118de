package config

import (
	"fmt"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if c.Registry.CheckBatchLimit <= 0 {
		return fmt.Errorf("registry.check_batch_limit must be > 0 (got %d)", c.Registry.CheckBatchLimit)
	}
	if c.Sweep.BatchSize <= 0 {
		return fmt.Errorf("sweep.batch_size must be > 0 (got %d)", c.Sweep.BatchSize)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be > 0 (got %v)", c.Sweep.Interval)
	}
	if len(c.DNS.Brokers) > 0 && c.DNS.Topic == "" {
		return fmt.Errorf("dns.topic must be set when brokers are configured")
	}
	return nil
}
