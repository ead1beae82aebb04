package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Circulation CirculationConfig `mapstructure:"circulation"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CirculationConfig carries the lending policy knobs: per-borrower-type loan
// periods and daily fine rates, the reservation hold window, and the
// disposal age threshold.
type CirculationConfig struct {
	Student             BorrowerTypeConfig `mapstructure:"student"`
	Staff               BorrowerTypeConfig `mapstructure:"staff"`
	MaxActiveLoans      int                `mapstructure:"max_active_loans"`
	MaxReservations     int                `mapstructure:"max_reservations"`
	MaxRenewals         int                `mapstructure:"max_renewals"`
	ReservationHoldDays int                `mapstructure:"reservation_hold_days"`
	DisposalAgeDays     int                `mapstructure:"disposal_age_days"`
	DisposalBatchLimit  int                `mapstructure:"disposal_batch_limit"`
}

type BorrowerTypeConfig struct {
	LoanPeriodDays int     `mapstructure:"loan_period_days"`
	DailyFineRate  float64 `mapstructure:"daily_fine_rate"`
}

func Load() (*Config, error) {
	// Optional .env overlay for local development
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/slms")

	viper.SetEnvPrefix("SLMS")
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("circulation.student.loan_period_days", 14)
	viper.SetDefault("circulation.student.daily_fine_rate", 1.00)
	viper.SetDefault("circulation.staff.loan_period_days", 30)
	viper.SetDefault("circulation.staff.daily_fine_rate", 0.50)
	viper.SetDefault("circulation.max_active_loans", 5)
	viper.SetDefault("circulation.max_reservations", 5)
	viper.SetDefault("circulation.max_renewals", 2)
	viper.SetDefault("circulation.reservation_hold_days", 7)
	viper.SetDefault("circulation.disposal_age_days", 2555)
	viper.SetDefault("circulation.disposal_batch_limit", 0)

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, use defaults and environment variables
			fmt.Printf("Config file not found, using defaults and environment variables\n")
		}
	}

	// Override with environment variables
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		viper.Set("redis.url", redisURL)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}
