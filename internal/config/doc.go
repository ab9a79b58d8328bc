// Package config provides configuration structures and utilities for mdimg.
// It defines the options controlling extraction, download behavior, and
// report generation, plus the .mdimg file loader with per-host settings
// used to satisfy hotlink-protected image servers.
package config
