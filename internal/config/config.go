package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-calendar/internal/weather"
)

type AppConfig struct {
	// OpenWeatherAPIKey may be empty; the weather endpoints then report a configuration error.
	OpenWeatherAPIKey string
	OpenWeatherURL    string `validate:"required,url"`
	GeocoderAPIKey    string

	// DefaultCity is the last-resort location when nothing better is known.
	DefaultCity    string `validate:"required"`
	DefaultCountry string

	// FetchInterval controls how often we refresh data for each warm-up location.
	FetchInterval time.Duration `validate:"gt=0"`

	// CacheMaxAge is how long a fetched snapshot is served before refetching.
	CacheMaxAge time.Duration `validate:"gte=0"`

	// Locations to keep warm.
	Locations []weather.Query `validate:"dive"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of snapshots per location (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of snapshots (0 = unlimited)

	HTTPTimeout time.Duration `validate:"gt=0"`
	Port        string        `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from .env (if any) and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherURL = getenvDefault("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.DefaultCity = getenvDefault("DEFAULT_CITY", "Tunis")
	cfg.DefaultCountry = os.Getenv("DEFAULT_COUNTRY")

	var err error
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = getenvDuration("CACHE_MAX_AGE", "10m"); err != nil {
		return nil, err
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	locs, err := loadLocations()
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadLocations() ([]weather.Query, error) {
	city := os.Getenv("WEATHER_LOCATION_CITY")
	if strings.TrimSpace(city) == "" {
		return nil, nil
	}
	cities := strings.Split(city, ",")

	var countries []string
	if country := os.Getenv("WEATHER_LOCATION_COUNTRY"); country != "" {
		countries = strings.Split(country, ",")
		if len(cities) != len(countries) {
			return nil, fmt.Errorf("number of cities and countries must be the same")
		}
	}

	var locs []weather.Query
	for i := range cities {
		q := weather.Query{City: strings.TrimSpace(cities[i])}
		if countries != nil {
			q.Country = strings.TrimSpace(countries[i])
		}
		if q.City == "" {
			return nil, fmt.Errorf("empty city at position %d in WEATHER_LOCATION_CITY", i)
		}
		locs = append(locs, q)
	}

	return locs, nil
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

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
