package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-calendar/internal/calendar"
	"github.com/i474232898/weather-calendar/internal/location"
	"github.com/i474232898/weather-calendar/internal/store"
	"github.com/i474232898/weather-calendar/internal/weather"
)

const (
	iconURLFormat        = "https://openweathermap.org/img/wn/%s@2x.png"
	currentIconURLFormat = "https://openweathermap.org/img/wn/%s@4x.png"
	dateLayout    = "2006-01-02"
	hourLayout    = "15:04"

	msgAPIKeyMissing = "Weather API key missing"
	msgLoadFailed    = "Failed to load weather data"
)

var validate = validator.New()

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Service  *weather.Service
	Calendar *calendar.Resolver
	Locator  *location.Chain
	// Now defaults to time.Now.
	Now func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/calendar/next", func(c *fiber.Ctx) error {
		date := d.Now()
		if s := c.Query("date"); s != "" {
			t, err := time.Parse(dateLayout, s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid date; use YYYY-MM-DD")
			}
			date = t
		}
		return c.JSON(eventResponse(d.Calendar, date))
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		resp, err := loadWeather(c, d)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	})

	v1.Get("/dashboard", func(c *fiber.Ctx) error {
		resp, err := loadWeather(c, d)
		if err != nil {
			return err
		}
		now := d.Now()
		ev := d.Calendar.ResolveDate(now)
		return c.JSON(dashboardResponse{
			weatherResponse: resp,
			Today:           calendar.FormatToday(now),
			Event:           ev.Label,
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		q := req.Location.toQuery()
		snapshots, err := d.Service.History(q, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"location":  q,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})
}

func eventResponse(r *calendar.Resolver, date time.Time) fiber.Map {
	ev := r.ResolveDate(date)
	return fiber.Map{
		"date":     date.Format(dateLayout),
		"today":    calendar.FormatToday(date),
		"event":    ev.Label,
		"rawEvent": ev.Raw,
		"month":    ev.Month,
		"day":      ev.Day,
		"found":    ev.Found,
	}
}

type weatherResponse struct {
	Location location.Result `json:"location"`
	Warnings []string        `json:"warnings"`
	Current  currentView     `json:"current"`
	Hourly   []hourlyView    `json:"hourly"`
	Daily    []dailyView     `json:"daily"`
}

type dashboardResponse struct {
	weatherResponse
	Today string `json:"today"`
	Event string `json:"event"`
}

type currentView struct {
	weather.CurrentWeather
	IconURL string `json:"iconUrl"`
}

// hourlyView carries the hour both in UTC (time) and at the location's own offset (localTime).
type hourlyView struct {
	weather.ForecastEntry
	Time      string `json:"time"`
	LocalTime string `json:"localTime"`
	IconURL   string `json:"iconUrl"`
}

type dailyView struct {
	weather.ForecastEntry
	Day     string `json:"day"`
	IconURL string `json:"iconUrl"`
}

func loadWeather(c *fiber.Ctx, d Deps) (weatherResponse, error) {
	req, err := parseWeatherQuery(c)
	if err != nil {
		return weatherResponse{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	loc, err := d.Locator.Resolve(ctx, req.toInput())
	if err != nil {
		log.Printf("ERROR: location resolution failed: %v", err)
		return weatherResponse{}, fiber.NewError(fiber.StatusInternalServerError, "unable to determine location")
	}

	report, _, err := d.Service.Report(ctx, loc.Query, d.Now())
	if err != nil {
		return weatherResponse{}, weatherError(err)
	}

	return present(loc, report), nil
}

func present(loc location.Result, r weather.Report) weatherResponse {
	resp := weatherResponse{
		Location: loc,
		Warnings: loc.Warnings,
		Current:  currentView{CurrentWeather: r.Current, IconURL: iconURL(currentIconURLFormat, r.Current.Icon)},
		Hourly:   make([]hourlyView, 0, len(r.Hourly)),
		Daily:    make([]dailyView, 0, len(r.Daily)),
	}
	zone := time.FixedZone("", r.Current.Timezone)
	for _, e := range r.Hourly {
		resp.Hourly = append(resp.Hourly, hourlyView{
			ForecastEntry: e,
			Time:          e.Time().Format(hourLayout),
			LocalTime:     e.Time().In(zone).Format(hourLayout),
			IconURL:       iconURL(iconURLFormat, e.Icon),
		})
	}
	for _, e := range r.Daily {
		resp.Daily = append(resp.Daily, dailyView{
			ForecastEntry: e.Entry,
			Day:           e.DayName,
			IconURL:       iconURL(iconURLFormat, e.Entry.Icon),
		})
	}
	return resp
}

func iconURL(format, icon string) string {
	if icon == "" {
		return ""
	}
	return fmt.Sprintf(format, icon)
}

// weatherError maps pipeline errors to user-facing HTTP errors.
func weatherError(err error) error {
	var srcErr *weather.SourceError
	switch {
	case errors.Is(err, weather.ErrAPIKeyMissing):
		return fiber.NewError(fiber.StatusServiceUnavailable, msgAPIKeyMissing)
	case errors.As(err, &srcErr):
		msg := srcErr.Message
		if msg == "" {
			msg = weather.DefaultSourceMessage
		}
		return fiber.NewError(fiber.StatusBadGateway, msg)
	case errors.Is(err, context.Canceled):
		return fiber.NewError(fiber.StatusRequestTimeout, "request cancelled")
	default:
		log.Printf("ERROR: weather report failed: %v", err)
		return fiber.NewError(fiber.StatusBadGateway, msgLoadFailed)
	}
}

// weatherQuery holds query parameters for the weather and dashboard endpoints.
type weatherQuery struct {
	Lat      *float64 `validate:"required_with=Lon"`
	Lon      *float64 `validate:"required_with=Lat"`
	Place    string   `validate:"max=200"`
	Services string   `validate:"omitempty,oneof=on off"`
}

func (w weatherQuery) toInput() location.Input {
	return location.Input{
		Lat:              w.Lat,
		Lon:              w.Lon,
		Place:            w.Place,
		ServicesDisabled: w.Services == "off",
	}
}

func parseWeatherQuery(c *fiber.Ctx) (weatherQuery, error) {
	var q weatherQuery
	var err error

	if q.Lat, err = parseFloat(c.Query("lat"), "lat"); err != nil {
		return q, err
	}
	if q.Lon, err = parseFloat(c.Query("lon"), "lon"); err != nil {
		return q, err
	}
	q.Place = c.Query("place")
	q.Services = strings.ToLower(c.Query("services"))

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func parseFloat(s, name string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid " + name + "; must be a number")
	}
	return &f, nil
}

// locationQuery holds query parameters for identifying a stored location.
type locationQuery struct {
	City    string `validate:"required"`
	Country string
}

func (l locationQuery) toQuery() weather.Query {
	return weather.Query{
		City:    l.City,
		Country: l.Country,
	}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Location = locationQuery{City: c.Query("city"), Country: c.Query("country")}
	if err := validate.Struct(h.Location); err != nil {
		return err
	}

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
