package weather

import (
	"fmt"
	"strings"
	"time"
)

// Query identifies where to fetch weather for: either a city name or coordinates.
// Coordinates win when both are set.
type Query struct {
	City    string   `json:"city,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// HasCoords reports whether both coordinates are present.
func (q Query) HasCoords() bool {
	return q.Lat != nil && q.Lon != nil
}

// Key returns a canonical string key for indexing this query in stores.
func (q Query) Key() string {
	if q.HasCoords() {
		return fmt.Sprintf("%.3f,%.3f", *q.Lat, *q.Lon)
	}
	key := strings.ToLower(strings.TrimSpace(q.City))
	if q.Country != "" {
		key += ":" + strings.ToLower(strings.TrimSpace(q.Country))
	}
	return key
}

// Coords builds a coordinate query.
func Coords(lat, lon float64) Query {
	return Query{Lat: &lat, Lon: &lon}
}

// CurrentWeather is the normalized current-conditions record.
// Temperatures are rounded to whole degrees.
type CurrentWeather struct {
	Temp        int     `json:"temp"`
	FeelsLike   int     `json:"feelsLike"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	WindSpeed   float64 `json:"windSpeed"`
	Description string  `json:"description"`
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Icon        string  `json:"icon"`
	TempMin     int     `json:"tempMin"`
	TempMax     int     `json:"tempMax"`
	// Timezone is the location's UTC offset in seconds, 0 when the provider omits it.
	Timezone int `json:"timezone"`
}

// ForecastEntry is one fixed-interval sample of the provider's forecast series.
type ForecastEntry struct {
	Dt          int64  `json:"dt"` // seconds since epoch, UTC
	Temp        int    `json:"temp"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Time returns the entry timestamp in UTC.
func (e ForecastEntry) Time() time.Time {
	return time.Unix(e.Dt, 0).UTC()
}

// DailyEntry is the representative forecast entry of one calendar day.
type DailyEntry struct {
	Entry   ForecastEntry `json:"entry"`
	DayName string        `json:"day"`
}

// Report is the pipeline output handed to presentation.
type Report struct {
	Current CurrentWeather  `json:"current"`
	Hourly  []ForecastEntry `json:"hourly"`
	Daily   []DailyEntry    `json:"daily"`
}
