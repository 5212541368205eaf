package milvus

import (
	"errors"
	"fmt"
	"time"
)

// Default retry settings
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Config represents the configuration for Milvus client
type Config struct {
	// Connection settings
	Address  string // Milvus server address (e.g., "localhost:19530")
	Username string // Username for authentication (optional)
	Password string // Password for authentication (optional)

	// Database settings
	Database string // Database name (optional, default is "default")

	// Timeout settings
	DialTimeout    time.Duration // Dial timeout
	RequestTimeout time.Duration // Request timeout

	// Retry settings
	MaxRetries int           // Maximum number of retries
	RetryDelay time.Duration // Delay between retries
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("milvus: address is required")
	}

	if c.DialTimeout < 0 {
		return errors.New("milvus: dial timeout must be non-negative")
	}

	if c.RequestTimeout < 0 {
		return errors.New("milvus: request timeout must be non-negative")
	}

	if c.MaxRetries < 0 {
		return errors.New("milvus: max retries must be non-negative")
	}

	if c.RetryDelay < 0 {
		return errors.New("milvus: retry delay must be non-negative")
	}

	return nil
}

// SetDefaults sets default values for unspecified configuration fields
func (c *Config) SetDefaults() {
	if c.Database == "" {
		c.Database = "default"
	}

	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultRetries
	}

	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// String returns a string representation of the configuration (hides sensitive data)
func (c *Config) String() string {
	password := "***"
	if c.Password == "" {
		password = ""
	}

	return fmt.Sprintf("Config{Address: %s, Username: %s, Password: %s, Database: %s}",
		c.Address, c.Username, password, c.Database)
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Address:        "localhost:19530",
		Database:       "default",
		DialTimeout:    10 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     DefaultRetries,
		RetryDelay:     DefaultRetryDelay,
	}
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}
