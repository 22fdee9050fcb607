// Package config defines the bootstrap settings and provides helpers to load,
// validate and save them in YAML format.
//
// Settings come from three layers resolved once at startup: built-in defaults,
// an optional YAML file, and MITS11_* environment variables (which win).
// The resulting Config struct is passed explicitly through the pipeline;
// no other package reads the environment.
package config
