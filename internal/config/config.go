package config

import "os"

// Config holds the process configuration, read from environment variables.
type Config struct {
	HTTPPort     string
	StoreBackend string // "memory", "file" or "mongo"
	RoomsFile    string
	MongoURI     string
	MongoDB      string
	RedisAddr    string // empty disables the Redis snapshot cache
}

// Load reads the configuration, falling back to development defaults.
func Load() *Config {
	return &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		RoomsFile:    getEnv("ROOMS_FILE", "rooms.json"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "scrumpoker"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
