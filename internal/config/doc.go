// Package config loads and validates the neuroproc TOML configuration.
//
// The configuration is read once at startup and treated as immutable for
// the life of the process; batch and watch modes receive the same value.
// Input and output directories arrive on the command line, not here, so a
// single config file can serve many ingest directories.
package config
