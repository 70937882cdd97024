// Package config loads the server configuration by merging environment
// variables, command-line flags, and an optional JSON file (in that
// priority order) into a single validated StructuredConfig.
package config
