package config

import "os"

func IsDebug() bool {
	return os.Getenv("CHORUS_DEBUG") == "1"
}

// IsJSONLog switches the console writer off for machine-readable output.
func IsJSONLog() bool {
	return os.Getenv("LOG_FORMAT") == "json"
}
