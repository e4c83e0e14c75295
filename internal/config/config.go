//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for dwetl.
// Configuration is loaded from config files and CLI flags (no environment
// variables). CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DateFormat is the layout used for all date values in configuration.
const DateFormat = "2006-01-02"

// Config holds all configuration for dwetl.
type Config struct {
	// Source is the connection string for the operational store (read-only).
	Source string `mapstructure:"source"`

	// Warehouse is the connection string for the data warehouse.
	Warehouse string `mapstructure:"warehouse"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Run holds configuration for the run subcommand.
	Run RunConfig `mapstructure:"run"`

	// Seed holds configuration for the seed subcommand.
	Seed SeedConfig `mapstructure:"seed"`
}

// RunConfig holds configuration for an ETL run.
type RunConfig struct {
	// StartDate is the inclusive start of the time dimension range (YYYY-MM-DD).
	StartDate string `mapstructure:"start_date"`

	// EndDate is the inclusive end of the time dimension range (YYYY-MM-DD).
	EndDate string `mapstructure:"end_date"`

	// AsOf is the snapshot date stamped on pricing and inventory facts
	// (YYYY-MM-DD). Empty means the current date.
	AsOf string `mapstructure:"as_of"`

	// ErrorThreshold is the maximum tolerated ratio of per-row transform
	// errors to source rows within a stage. Exceeding it fails the stage.
	ErrorThreshold float64 `mapstructure:"error_threshold"`

	// OverwriteOnConflict makes dimension loads overwrite attributes of
	// already-present keys (type-1) instead of leaving them untouched.
	OverwriteOnConflict bool `mapstructure:"overwrite_on_conflict"`
}

// SeedConfig holds configuration for operational-store sample data.
type SeedConfig struct {
	// Categories is the number of product categories to generate.
	Categories int `mapstructure:"categories"`

	// Products is the number of products to generate.
	Products int `mapstructure:"products"`

	// Stores is the number of stores to generate.
	Stores int `mapstructure:"stores"`

	// Customers is the number of customers to generate.
	Customers int `mapstructure:"customers"`

	// Sales is the number of sale transactions to generate.
	Sales int `mapstructure:"sales"`

	// Days is how many days back sale dates are spread over.
	Days int `mapstructure:"days"`

	// DropExisting drops the source schema before seeding.
	DropExisting bool `mapstructure:"drop_existing"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Run: RunConfig{
			StartDate:      "2020-01-01",
			EndDate:        "2024-12-31",
			ErrorThreshold: 0.10,
		},
		Seed: SeedConfig{
			Categories: 10,
			Products:   200,
			Stores:     8,
			Customers:  500,
			Sales:      5000,
			Days:       90,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./dwetl.yaml
// 3. ~/.config/dwetl/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("dwetl")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "dwetl"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Warehouse == "" {
		return fmt.Errorf("warehouse connection string is required")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Source == "" {
		return fmt.Errorf("source connection string is required")
	}

	start, err := time.Parse(DateFormat, c.Run.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start_date %q: %w", c.Run.StartDate, err)
	}
	end, err := time.Parse(DateFormat, c.Run.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end_date %q: %w", c.Run.EndDate, err)
	}
	if start.After(end) {
		return fmt.Errorf("start_date %s is after end_date %s",
			c.Run.StartDate, c.Run.EndDate)
	}
	if c.Run.AsOf != "" {
		if _, err := time.Parse(DateFormat, c.Run.AsOf); err != nil {
			return fmt.Errorf("invalid as_of %q: %w", c.Run.AsOf, err)
		}
	}
	if c.Run.ErrorThreshold < 0 || c.Run.ErrorThreshold > 1 {
		return fmt.Errorf("error_threshold must be between 0 and 1")
	}
	return nil
}

// ValidateSeed checks configuration required for the seed command.
func (c *Config) ValidateSeed() error {
	if c.Source == "" {
		return fmt.Errorf("source connection string is required")
	}
	if c.Seed.Categories < 1 || c.Seed.Products < 1 || c.Seed.Stores < 1 ||
		c.Seed.Customers < 1 {
		return fmt.Errorf("seed row counts must be at least 1")
	}
	if c.Seed.Days < 1 {
		return fmt.Errorf("seed days must be at least 1")
	}
	return nil
}
