// Package config loads nbkernel settings.
//
// Values resolve in three layers: compiled-in defaults, then the TOML
// file (an explicit --config path, or nbkernel.toml under the user
// config directory), then NBKERNEL_-prefixed environment variables.
// Later layers win per value.
//
// Environment names follow the TOML structure: NBKERNEL_LOG_LEVEL sets
// log_level, NBKERNEL_KERNEL_STARTUP_TIMEOUT sets kernel.startup_timeout,
// and so on.
package config
