// Package config loads and validates YAML configuration for the
// streamfeed binaries. Values of the form ${VAR} are expanded from the
// environment before parsing.
package config
