// Package config loads process configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables (optionally seeded from a .env file via godotenv).
// The result is validated once at startup and converted into the per-package
// configs the embedder, fetcher and searcher take.
package config
