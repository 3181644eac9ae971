package env

import (
	"os"
	"strconv"
	"strings"
)

// Prefix namespaces process settings read outside of the config package.
const Prefix = "DEVICETRADE_"

// Get returns DEVICETRADE_<key>, then <key>, then fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(Prefix + key)); val != "" {
		return val
	}
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Bool reads key like Get and parses it with strconv.ParseBool. Unparseable
// values yield fallback.
func Bool(key string, fallback bool) bool {
	raw := Get(key, "")
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return val
}
