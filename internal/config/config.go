package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-panel/internal/weather"
)

// DefaultRefreshMinutes is used when WEATHER_REFRESH_MINUTES is unset.
const DefaultRefreshMinutes = 20

var validate = validator.New()

// Connection holds the host-provided settings for one weather connection.
type Connection struct {
	APIKey         string               `json:"apiKey" validate:"required"`
	Location       string               `json:"location" validate:"required"`
	Units          weather.Units        `json:"units" validate:"oneof=imperial metric"`
	Timezone       weather.TimezoneMode `json:"timezone" validate:"oneof=location host utc"`
	RefreshMinutes int                  `json:"refreshMinutes" validate:"min=1"`
}

// RefreshInterval is the configured interval as a duration.
func (c Connection) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMinutes) * time.Minute
}

// WithDefaults fills zero-valued optional fields.
func (c Connection) WithDefaults() Connection {
	if c.Units == "" {
		c.Units = weather.UnitsImperial
	}
	if c.Timezone == "" {
		c.Timezone = weather.TimezoneLocation
	}
	if c.RefreshMinutes == 0 {
		c.RefreshMinutes = DefaultRefreshMinutes
	}
	return c
}

// Validate reports missing credentials or out-of-range settings. The error
// wraps weather.ErrInvalidConfig.
func (c Connection) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", weather.ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", weather.ErrInvalidConfig, err)
	}
	return nil
}

// ProviderConfig holds upstream endpoints.
type ProviderConfig struct {
	BaseURL     string
	IconURL     string
	IconSize    int
	HTTPTimeout time.Duration
}

// RedisConfig enables the shared icon cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	IconTTL  time.Duration
}

// KafkaConfig enables snapshot publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AppConfig struct {
	Connection Connection
	Provider   ProviderConfig
	Redis      RedisConfig
	Kafka      KafkaConfig

	Port string
}

// Load reads configuration from environment with sensible defaults. The
// connection config is not validated here; an invalid one is reported by the
// controller as a bad-config status.
func Load() (*AppConfig, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.Connection = Connection{
		APIKey:         os.Getenv("OPENWEATHER_API_KEY"),
		Location:       os.Getenv("WEATHER_LOCATION"),
		Units:          weather.Units(getenvDefault("WEATHER_UNITS", string(weather.UnitsImperial))),
		Timezone:       weather.TimezoneMode(getenvDefault("WEATHER_TIMEZONE", string(weather.TimezoneLocation))),
		RefreshMinutes: getenvInt("WEATHER_REFRESH_MINUTES", DefaultRefreshMinutes),
	}

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.Provider = ProviderConfig{
		BaseURL:     os.Getenv("OPENWEATHER_BASE_URL"),
		IconURL:     os.Getenv("OPENWEATHER_ICON_URL"),
		IconSize:    getenvInt("ICON_SIZE", 72),
		HTTPTimeout: timeout,
	}

	iconTTL, err := time.ParseDuration(getenvDefault("REDIS_ICON_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_ICON_TTL: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getenvInt("REDIS_DB", 0),
		IconTTL:  iconTTL,
	}

	cfg.Kafka = KafkaConfig{
		Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
		Topic:   getenvDefault("KAFKA_TOPIC", "weather.variables"),
	}

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
