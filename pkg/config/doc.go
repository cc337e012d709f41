// Package config loads capflow settings from defaults, CAPFLOW_* environment
// variables, an optional YAML or JSON file read through viper, and functional
// options, then validates the result.
package config
