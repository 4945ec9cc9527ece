package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	StationName string
	SampleRate  int
	Channels    string

	BroadcastConfigFile string
	FFmpegPath          string

	OperatorUsername string
	OperatorPassword string
	JWTSecret        string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8000"),
		StationName: getEnv("STATION_NAME", "Denpa Radio"),
		SampleRate:  getEnvAsInt("SAMPLE_RATE", 44100),
		Channels:    getEnv("CHANNELS", "2"),

		BroadcastConfigFile: getEnv("BROADCAST_CONFIG_FILE", "./data/broadcast.yaml"),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),

		OperatorUsername: getEnv("OPERATOR_USERNAME", "operator"),
		OperatorPassword: getEnv("OPERATOR_PASSWORD", "denpa"),
		JWTSecret:        getEnv("JWT_SECRET", "change-me-in-production-please"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}
