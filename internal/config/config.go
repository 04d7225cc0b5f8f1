/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the membership-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	PaymentEventQueue          string `mapstructure:"PAYMENT_EVENT_QUEUE"`
	JWKSURL                    string `mapstructure:"JWKS_URL"`
	WebDAVURL                  string `mapstructure:"WEBDAV_URL"`
	WebDAVUsername             string `mapstructure:"WEBDAV_USERNAME"`
	WebDAVPassword             string `mapstructure:"WEBDAV_PASSWORD"`
	UploadRateLimitPerMinute   int    `mapstructure:"UPLOAD_RATE_LIMIT_PER_MINUTE"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	DividendReminderSchedule   string `mapstructure:"DIVIDEND_REMINDER_SCHEDULE"`
	DefaultNoticePeriodMonths  int    `mapstructure:"DEFAULT_NOTICE_PERIOD_MONTHS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PAYMENT_EVENT_QUEUE", "membership_service.payment_updates")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "coopsuite:rate_limit")
	viper.SetDefault("UPLOAD_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("DIVIDEND_REMINDER_SCHEDULE", "0 8 * * MON")
	viper.SetDefault("DEFAULT_NOTICE_PERIOD_MONTHS", 24)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "MEMBERSHIP_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_QUEUE")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("WEBDAV_URL")
	_ = viper.BindEnv("WEBDAV_USERNAME")
	_ = viper.BindEnv("WEBDAV_PASSWORD")
	_ = viper.BindEnv("UPLOAD_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("DIVIDEND_REMINDER_SCHEDULE")
	_ = viper.BindEnv("DEFAULT_NOTICE_PERIOD_MONTHS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "coopsuite:rate_limit"
	}
	if config.UploadRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative upload rate limit configured; coercing to zero\" limit=%d", config.UploadRateLimitPerMinute)
		config.UploadRateLimitPerMinute = 0
	}
	if config.TransferRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative transfer rate limit configured; coercing to zero\" limit=%d", config.TransferRateLimitPerMinute)
		config.TransferRateLimitPerMinute = 0
	}
	if strings.TrimSpace(config.DividendReminderSchedule) == "" {
		config.DividendReminderSchedule = "0 8 * * MON"
	}
	if config.DefaultNoticePeriodMonths <= 0 {
		config.DefaultNoticePeriodMonths = 24
	}

	return
}
