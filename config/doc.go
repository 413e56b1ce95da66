// Package config loads the fairdeal settings from a YAML file, FAIRDEAL_*
// environment variables and command line flags, in increasing priority.
package config
