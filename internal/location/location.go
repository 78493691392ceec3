// Package location resolves where to fetch weather for. Strategies are tried in order
// and the first success wins; a failing strategy is recorded as a warning and the chain
// moves on. The last strategy is normally the fixed default city, which cannot fail.
package location

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-calendar/internal/metrics"
	"github.com/i474232898/weather-calendar/internal/weather"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrServicesDisabled = errors.New("location services disabled")
	ErrCoordinateRead   = errors.New("unable to get location")

	// ErrNotApplicable means the strategy has nothing to work with and is skipped
	// without a warning.
	ErrNotApplicable = errors.New("strategy not applicable")

	ErrNoStrategy = errors.New("no location strategy succeeded")
)

// Input is what the caller knows about its own position.
type Input struct {
	Lat              *float64
	Lon              *float64
	Place            string
	ServicesDisabled bool
}

// Strategy is one way of turning Input into a weather query.
type Strategy interface {
	Name() string
	Locate(ctx context.Context, in Input) (weather.Query, error)
}

// Result is the chosen query plus the soft warnings of the strategies that failed first.
type Result struct {
	Query    weather.Query `json:"query"`
	Strategy string        `json:"strategy"`
	Warnings []string      `json:"warnings"`
}

// Chain tries its strategies in order.
type Chain struct {
	strategies []Strategy
}

func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Resolve returns the first successful strategy's query.
func (c *Chain) Resolve(ctx context.Context, in Input) (Result, error) {
	res := Result{Warnings: []string{}}
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		q, err := s.Locate(ctx, in)
		if err == nil {
			res.Query = q
			res.Strategy = s.Name()
			return res, nil
		}
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		log.Printf("location: %s failed: %v", s.Name(), err)
		metrics.LocationFallbacksTotal.WithLabelValues(s.Name()).Inc()
		res.Warnings = append(res.Warnings, warning(err))
	}
	return Result{}, ErrNoStrategy
}

func warning(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// Coordinates uses caller-supplied coordinates.
type Coordinates struct{}

func (Coordinates) Name() string { return "coordinates" }

func (Coordinates) Locate(_ context.Context, in Input) (weather.Query, error) {
	if in.ServicesDisabled {
		return weather.Query{}, ErrServicesDisabled
	}
	if in.Lat == nil || in.Lon == nil {
		return weather.Query{}, ErrPermissionDenied
	}
	lat, lon := *in.Lat, *in.Lon
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return weather.Query{}, fmt.Errorf("%w: coordinates %v,%v out of range", ErrCoordinateRead, lat, lon)
	}
	return weather.Coords(lat, lon), nil
}

// City is a fixed fallback location.
type City struct {
	City    string
	Country string
}

func (c City) Name() string { return "default-city" }

func (c City) Locate(context.Context, Input) (weather.Query, error) {
	return weather.Query{City: c.City, Country: c.Country}, nil
}

// Place resolves a free-text place name. With a geocoder it becomes coordinates,
// otherwise the name is passed to the provider as a city query.
type Place struct {
	geocode func(geocoder.Address) (geocoder.Location, error)
}

// NewPlace returns a Place strategy. An empty apiKey disables geocoding.
func NewPlace(apiKey string) *Place {
	if apiKey == "" {
		return &Place{}
	}
	geocoder.ApiKey = apiKey
	return &Place{geocode: geocoder.Geocoding}
}

func (p *Place) Name() string { return "place" }

func (p *Place) Locate(_ context.Context, in Input) (weather.Query, error) {
	place := strings.TrimSpace(in.Place)
	if place == "" {
		return weather.Query{}, ErrNotApplicable
	}

	city, country := place, ""
	if i := strings.LastIndex(place, ","); i >= 0 {
		city, country = strings.TrimSpace(place[:i]), strings.TrimSpace(place[i+1:])
	}

	if p.geocode == nil {
		return weather.Query{City: city, Country: country}, nil
	}

	loc, err := p.geocode(geocoder.Address{City: city, Country: country})
	if err != nil {
		return weather.Query{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	q := weather.Coords(loc.Latitude, loc.Longitude)
	q.City, q.Country = city, country
	return q, nil
}
