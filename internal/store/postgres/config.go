package postgres

import (
	"fmt"
	"time"
)

// AuditStoreConfig holds configuration for the PostgreSQL audit store.
type AuditStoreConfig struct {
	Pool PoolConfig

	// AutoMigrate runs embedded migrations when the store is opened.
	AutoMigrate bool

	// QueryTimeout bounds each statement. Default 10s.
	QueryTimeout time.Duration
}

// Validate checks that the configuration is valid.
func (c *AuditStoreConfig) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query timeout must not be negative")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *AuditStoreConfig) ApplyDefaults() {
	c.Pool.ApplyDefaults()
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
}
