package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "flipkit"
	EnvFileName = "config.env"
)

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Config holds runtime settings for the pipeline, read from the environment.
type Config struct {
	// Enhancement endpoint base URL. Empty disables enhancement.
	EnhanceURL string
	// Streaming and non-streaming analysis endpoint URLs. When both are
	// empty the Gemini gateway is used instead.
	AnalyzeStreamURL string
	AnalyzeURL       string
	// Gemini model used by the Gemini gateway.
	GeminiModel string

	DBPath      string
	StoreKey    string // passphrase for credential encryption at rest
	PricingPath string // optional YAML pricing table override
	EnhanceDir  string // where enhanced images are written; empty keeps them in memory

	AnalysisTimeout time.Duration
	EnhanceTimeout  time.Duration
}

// FromEnv builds a Config from FLIPKIT_* environment variables with defaults.
func FromEnv() Config {
	cfg := Config{
		EnhanceURL:       os.Getenv("FLIPKIT_ENHANCE_URL"),
		AnalyzeStreamURL: os.Getenv("FLIPKIT_ANALYZE_STREAM_URL"),
		AnalyzeURL:       os.Getenv("FLIPKIT_ANALYZE_URL"),
		GeminiModel:      os.Getenv("FLIPKIT_GEMINI_MODEL"),
		DBPath:           os.Getenv("FLIPKIT_DB_PATH"),
		StoreKey:         os.Getenv("FLIPKIT_STORE_KEY"),
		PricingPath:      os.Getenv("FLIPKIT_PRICING_CONFIG"),
		EnhanceDir:       os.Getenv("FLIPKIT_ENHANCE_DIR"),
		AnalysisTimeout:  durationEnv("FLIPKIT_ANALYSIS_TIMEOUT_SEC", 120*time.Second),
		EnhanceTimeout:   durationEnv("FLIPKIT_ENHANCE_TIMEOUT_SEC", 30*time.Second),
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.5-flash"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "flipkit.db"
	}
	if cfg.StoreKey == "" {
		cfg.StoreKey = "flipkit-local-store"
	}
	return cfg
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
