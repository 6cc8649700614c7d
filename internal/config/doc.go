// Package config loads application settings from defaults, an optional YAML
// file and JOBTRAIL_-prefixed environment variables, then validates them.
package config
