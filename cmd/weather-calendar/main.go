package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-calendar/internal/api/http"
	"github.com/i474232898/weather-calendar/internal/calendar"
	"github.com/i474232898/weather-calendar/internal/config"
	"github.com/i474232898/weather-calendar/internal/location"
	"github.com/i474232898/weather-calendar/internal/scheduler"
	"github.com/i474232898/weather-calendar/internal/store"
	"github.com/i474232898/weather-calendar/internal/weather"
	"github.com/i474232898/weather-calendar/internal/weather/providers"
)

var cli struct {
	Serve  serveCmd  `cmd:"" default:"1" help:"Run the HTTP server (default)."`
	Event  eventCmd  `cmd:"" help:"Print the next seasonal event."`
	Report reportCmd `cmd:"" help:"Fetch weather once and print the report as JSON."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("weather-calendar"),
		kong.Description("Weather and seasonal farmer calendar service."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}

type serveCmd struct{}

func (serveCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	resolver, err := calendar.Farmer()
	if err != nil {
		return fmt.Errorf("failed to load calendar: %w", err)
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	service := newService(cfg, memStore)

	// Scheduler that keeps configured locations warm.
	sched := scheduler.New(cfg.Locations, cfg.FetchInterval, service)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-calendar",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.HTTPTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-calendar",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:  service,
		Calendar: resolver,
		Locator:  newLocator(cfg),
	})

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	return nil
}

type eventCmd struct {
	Date string `help:"Date as YYYY-MM-DD; defaults to today." placeholder:"YYYY-MM-DD"`
}

func (e eventCmd) Run() error {
	resolver, err := calendar.Farmer()
	if err != nil {
		return err
	}

	date := time.Now()
	if e.Date != "" {
		if date, err = time.Parse("2006-01-02", e.Date); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	fmt.Println(calendar.FormatToday(date))
	fmt.Println(resolver.ResolveDate(date).Label)
	return nil
}

type reportCmd struct {
	City    string   `help:"City name; defaults to DEFAULT_CITY."`
	Country string   `help:"Country code for --city."`
	Lat     *float64 `help:"Latitude." and:"coords"`
	Lon     *float64 `help:"Longitude." and:"coords"`
}

func (r reportCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	chain := newLocator(cfg)
	res, err := chain.Resolve(context.Background(), location.Input{
		Lat:   r.Lat,
		Lon:   r.Lon,
		Place: placeOf(r.City, r.Country),
	})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.Printf("INFO: %s", w)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.HTTPTimeout)
	defer cancel()

	report, _, err := newService(cfg, nil).Report(ctx, res.Query, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func placeOf(city, country string) string {
	if city == "" || country == "" {
		return city
	}
	return city + ", " + country
}

func newService(cfg *config.AppConfig, st weather.Store) *weather.Service {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey).
		WithBaseURL(cfg.OpenWeatherURL)
	return weather.NewService(st, provider, cfg.CacheMaxAge)
}

// newLocator builds the acquisition chain: an explicit place, then caller
// coordinates, then the configured default city.
func newLocator(cfg *config.AppConfig) *location.Chain {
	return location.NewChain(
		location.NewPlace(cfg.GeocoderAPIKey),
		location.Coordinates{},
		location.City{City: cfg.DefaultCity, Country: cfg.DefaultCountry},
	)
}
