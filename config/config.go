package config

import (
	"accountwatch/internal/logger"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion   string `mapstructure:"GENERAL_VERSION"`
	Environment      string `mapstructure:"ENVIRONMENT"`
	ServerPort       int    `mapstructure:"SERVER_PORT"`
	ServerURL        string `mapstructure:"SERVER_URL"`
	CorsAllowOrigins string `mapstructure:"CORS_ALLOW_ORIGINS"`
	ReconnectSeconds int    `mapstructure:"WS_RECONNECT_SECONDS"`
	ResultsDir       string `mapstructure:"RESULTS_DIR"`
	UploadDir        string `mapstructure:"UPLOAD_DIR"`
	MaxConcurrent    int    `mapstructure:"PROCESSOR_MAX_CONCURRENT"`
	SchedulerEnabled bool   `mapstructure:"SCHEDULER_ENABLED"`
	RetentionHours   int    `mapstructure:"RESULT_RETENTION_HOURS"`
}

var ConfigInstance Config

func New() (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	viper.AutomaticEnv()

	envVars := []string{
		"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT", "SERVER_URL",
		"CORS_ALLOW_ORIGINS", "WS_RECONNECT_SECONDS",
		"RESULTS_DIR", "UPLOAD_DIR", "PROCESSOR_MAX_CONCURRENT",
		"SCHEDULER_ENABLED", "RESULT_RETENTION_HOURS",
	}

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	viper.SetDefault("GENERAL_VERSION", "0.1.0")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_URL", "http://localhost:8080")
	viper.SetDefault("WS_RECONNECT_SECONDS", 3)
	viper.SetDefault("RESULTS_DIR", "results")
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("PROCESSOR_MAX_CONCURRENT", 5)
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("RESULT_RETENTION_HOURS", 24)

	if viper.IsSet("SERVER_PORT") && viper.IsSet("ENVIRONMENT") {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Debug("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config", "environment", config.Environment)
	return ConfigInstance, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	if config.ReconnectSeconds <= 0 {
		return log.Error(
			"Fatal error: invalid reconnect delay",
			"seconds", config.ReconnectSeconds,
		)
	}

	if config.MaxConcurrent <= 0 {
		return log.Error(
			"Fatal error: invalid processor concurrency",
			"maxConcurrent", config.MaxConcurrent,
		)
	}

	ConfigInstance = config
	return nil
}
