package session

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines session controller behavior.
type Config struct {
	// FixedRecordingDuration force-stops a recording after the given
	// duration. Zero means recording runs until the user stops it.
	FixedRecordingDuration time.Duration `yaml:"fixed_recording_duration"`
	// ConfirmHold keeps a finished session in the done state briefly so
	// clients can show a confirmation before the controller resets.
	ConfirmHold time.Duration `yaml:"confirm_hold"`
	// RequireAuth rejects anonymous activations when true.
	RequireAuth bool `yaml:"require_auth"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		FixedRecordingDuration: getenvDurationDefault("SOS_FIXED_RECORDING_DURATION", 0),
		ConfirmHold:            getenvDurationDefault("SOS_CONFIRM_HOLD", 2*time.Second),
		RequireAuth:            getenvBoolDefault("SOS_REQUIRE_AUTH", false),
	}

	if path := os.Getenv("SOS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
