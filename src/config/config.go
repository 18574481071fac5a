package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Limits    LimitsConfig    `mapstructure:"limits"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Timezone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type InventoryConfig struct {
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// LimitsConfig holds the rate-limit and fraud ceilings. These are business
// tuning values, not protocol constants.
type LimitsConfig struct {
	ReservationsPerHour     int64   `mapstructure:"reservations_per_hour"`
	PurchasesPerDay         int64   `mapstructure:"purchases_per_day"`
	OrganizerOpsPerHour     int64   `mapstructure:"organizer_ops_per_hour"`
	SuspiciousIPPerDay      int64   `mapstructure:"suspicious_ip_per_day"`
	MaxPaymentMethods       int64   `mapstructure:"max_payment_methods"`
	HighValueAmount         float32 `mapstructure:"high_value_amount"`
	HighValueAttemptsPerDay int64   `mapstructure:"high_value_attempts_per_day"`
	OrganizerSuspiciousMax  int64   `mapstructure:"organizer_suspicious_max"`
}

var (
	cfg  *Config
	once sync.Once
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "tixdb")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("inventory.reservation_ttl", 15*time.Minute)
	v.SetDefault("inventory.cache_ttl", time.Hour)
	v.SetDefault("inventory.sweep_interval", time.Minute)
	v.SetDefault("limits.reservations_per_hour", 10)
	v.SetDefault("limits.purchases_per_day", 20)
	v.SetDefault("limits.organizer_ops_per_hour", 100)
	v.SetDefault("limits.suspicious_ip_per_day", 5)
	v.SetDefault("limits.max_payment_methods", 3)
	v.SetDefault("limits.high_value_amount", 1000)
	v.SetDefault("limits.high_value_attempts_per_day", 2)
	v.SetDefault("limits.organizer_suspicious_max", 10)
}

// Load reads config.yaml from ./config when present, with TIX_* environment
// variables taking precedence over both file and defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TIX")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns the process-wide config, loading it on first use.
func Get() *Config {
	once.Do(func() {
		c, err := Load()
		if err != nil {
			panic(err)
		}
		cfg = c
	})
	return cfg
}

// Set replaces the process-wide config (tests).
func Set(c *Config) {
	once.Do(func() {})
	cfg = c
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.Timezone)
}
