// Package env reads process environment values with fallbacks, for the few
// spots that sit outside the envconfig-managed configuration.
package env

import "os"

// Get returns the named environment variable, or fallback when it is unset
// or empty.
func Get(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
