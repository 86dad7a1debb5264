// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Environment variables (optionally from a .env file) override lake paths
// and cloud settings. The package supports multiple GTFS feeds and allows
// feed selection by name.
package config
