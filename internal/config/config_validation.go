// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package config

import "time"

// applyDefaults fills in the fallback values for settings that every
// deployment needs but that may be omitted from all sources.
func (cfg *StructuredConfig) applyDefaults() {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgx"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Server.HTTPAddress == "" {
		cfg.Server.HTTPAddress = "localhost:8080"
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.Sync.SchedulerPeriod <= 0 {
		cfg.Sync.SchedulerPeriod = time.Minute
	}
	if cfg.Sync.MaxRetries <= 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.Backoff <= 0 {
		cfg.Sync.Backoff = 5 * time.Second
	}
}

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a descriptive error otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Database.DSN == "" && cfg.Database.Name == "" {
		return ErrInvalidDatabaseConfigs
	}

	if cfg.Database.Driver != "pgx" && cfg.Database.Driver != "sqlite3" {
		return ErrUnsupportedDatabaseDriver
	}

	if cfg.Auth.TokenSignKey == "" || cfg.Auth.PasswordHashKey == "" {
		return ErrInvalidAuthConfigs
	}

	return nil
}
