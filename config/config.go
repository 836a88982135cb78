package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	RedisQueueDB   int    `mapstructure:"REDIS_QUEUE_DB"`

	// Google Cloud credentials (speech recognition and synthesis).
	GoogleServiceAccountFile string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GeminiAPIKey             string `mapstructure:"GEMINI_API_KEY"`

	// Voice pipeline tuning.
	DefaultLanguage     string `mapstructure:"DEFAULT_LANGUAGE"`
	SessionTTLMinutes   int    `mapstructure:"SESSION_TTL_MINUTES"`
	MaxActiveSessions   int    `mapstructure:"MAX_ACTIVE_SESSIONS"`
	IntentTimeoutMs     int    `mapstructure:"INTENT_TIMEOUT_MS"`
	SynthesisTimeoutMs  int    `mapstructure:"SYNTHESIS_TIMEOUT_MS"`
	UtteranceMaxWords   int    `mapstructure:"UTTERANCE_MAX_WORDS"`
	CompletionGraceSecs int    `mapstructure:"COMPLETION_GRACE_SECS"`

	// External booking dispatcher.
	DispatchURL       string `mapstructure:"DISPATCH_URL"`
	DispatchTimeoutMs int    `mapstructure:"DISPATCH_TIMEOUT_MS"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("DEFAULT_LANGUAGE", "en")
	viper.SetDefault("SESSION_TTL_MINUTES", 30)
	viper.SetDefault("MAX_ACTIVE_SESSIONS", 500)
	viper.SetDefault("INTENT_TIMEOUT_MS", 4000)
	viper.SetDefault("SYNTHESIS_TIMEOUT_MS", 800)
	viper.SetDefault("UTTERANCE_MAX_WORDS", 24)
	viper.SetDefault("COMPLETION_GRACE_SECS", 3)
	viper.SetDefault("DISPATCH_URL", "http://dispatch-service:9000")
	viper.SetDefault("DISPATCH_TIMEOUT_MS", 5000)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
