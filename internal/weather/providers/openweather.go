package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-calendar/internal/weather"
	"github.com/sony/gobreaker"
)

// DefaultOpenWeatherURL is the OpenWeatherMap 2.5 API root.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherProvider implements weather.Source for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	lang    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: DefaultOpenWeatherURL,
		lang:    "en",
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

// WithBaseURL points the provider at another API root.
func (p *OpenWeatherProvider) WithBaseURL(u string) *OpenWeatherProvider {
	p.baseURL = u
	return p
}

// WithBackoff overrides the retry policy.
func (p *OpenWeatherProvider) WithBackoff(b BackoffConfig) *OpenWeatherProvider {
	p.httpCfg.Backoff = b
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// Current fetches /weather for q.
func (p *OpenWeatherProvider) Current(ctx context.Context, q weather.Query) (weather.RawCurrent, error) {
	var payload weather.RawCurrent
	if err := p.get(ctx, "weather", q, &payload); err != nil {
		return weather.RawCurrent{}, err
	}
	return payload, nil
}

// Forecast fetches the 5 day / 3 hour /forecast series for q.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, q weather.Query) (weather.RawForecast, error) {
	var payload weather.RawForecast
	if err := p.get(ctx, "forecast", q, &payload); err != nil {
		return weather.RawForecast{}, err
	}
	return payload, nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, endpoint string, q weather.Query, out any) error {
	if p.apiKey == "" {
		return weather.ErrAPIKeyMissing
	}
	if !q.HasCoords() && q.City == "" {
		return fmt.Errorf("openweather %s: query needs a city or coordinates", endpoint)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lang", p.lang)

		if q.HasCoords() {
			values.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
			values.Set("lon", strconv.FormatFloat(*q.Lon, 'f', -1, 64))
		} else {
			// city,country
			city := q.City
			if q.Country != "" {
				city = fmt.Sprintf("%s,%s", q.City, q.Country)
			}
			values.Set("q", city)
		}

		u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, p.name, endpoint, buildRequest)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("openweather %s: decode: %w", endpoint, err)
	}
	return nil
}
