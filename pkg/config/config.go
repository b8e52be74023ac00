package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config covers process level configuration read from environment variables
type Config struct {
	Environment             string
	Port                    string
	GinMode                 string
	DatabaseURL             string // postgres when set
	DataPath                string // sqlite file otherwise
	JWTSecret               string
	APIMasterSecret         string
	AdminUsername           string
	AdminPassword           string
	RecommendedDailyMinutes int
	DefaultCycleType        string
}

// LoadDotEnv loads the first .env found in the working directory or its parents
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads environment variables, applies defaults, and validates the result
func Load() (*Config, error) {
	cfg := &Config{
		Environment:             getEnv("APP_ENV", "production"),
		Port:                    getEnv("PORT", "8000"),
		GinMode:                 os.Getenv("GIN_MODE"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		DataPath:                getEnv("DATA_PATH", "study_planner.db"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		APIMasterSecret:         os.Getenv("API_MASTER_SECRET"),
		AdminUsername:           getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:           getEnv("ADMIN_PASSWORD", "admin123"),
		RecommendedDailyMinutes: getEnvInt("RECOMMENDED_DAILY_MINUTES", 360),
		DefaultCycleType:        getEnv("DEFAULT_CYCLE_TYPE", "1730"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.RecommendedDailyMinutes < 0 {
		return fmt.Errorf("RECOMMENDED_DAILY_MINUTES must not be negative, got %d", c.RecommendedDailyMinutes)
	}
	if c.Environment == "production" && (c.JWTSecret == "" || c.APIMasterSecret == "") {
		return fmt.Errorf("JWT_SECRET and API_MASTER_SECRET are required in production")
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
