package weather

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxHourly caps the hourly view.
	MaxHourly = 8
	// MaxDaily caps the daily view after the current day is dropped.
	MaxDaily = 5

	hourlyWindow = 24 * time.Hour
	dayKeyLayout = "2006-01-02"
)

// Round rounds half up toward positive infinity, so 2.5 -> 3 and -2.5 -> -2.
func Round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// NormalizeCurrent turns a raw current-weather payload into a CurrentWeather.
// It returns ErrMissingField without a partial record if anything required is absent.
func NormalizeCurrent(raw RawCurrent) (CurrentWeather, error) {
	m := raw.Main
	if m == nil {
		return CurrentWeather{}, missing("main")
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"main.temp", m.Temp},
		{"main.feels_like", m.FeelsLike},
		{"main.humidity", m.Humidity},
		{"main.pressure", m.Pressure},
		{"main.temp_min", m.TempMin},
		{"main.temp_max", m.TempMax},
	} {
		if f.v == nil {
			return CurrentWeather{}, missing(f.name)
		}
	}
	if raw.Wind == nil || raw.Wind.Speed == nil {
		return CurrentWeather{}, missing("wind.speed")
	}
	if len(raw.Weather) == 0 {
		return CurrentWeather{}, missing("weather[0]")
	}
	if raw.Name == nil {
		return CurrentWeather{}, missing("name")
	}
	if raw.Sys == nil || raw.Sys.Country == nil {
		return CurrentWeather{}, missing("sys.country")
	}

	var tz int
	if raw.Timezone != nil {
		tz = *raw.Timezone
	}

	return CurrentWeather{
		Temp:        Round(*m.Temp),
		FeelsLike:   Round(*m.FeelsLike),
		Humidity:    *m.Humidity,
		Pressure:    *m.Pressure,
		WindSpeed:   *raw.Wind.Speed,
		Description: raw.Weather[0].Description,
		City:        *raw.Name,
		Country:     *raw.Sys.Country,
		Icon:        raw.Weather[0].Icon,
		TempMin:     Round(*m.TempMin),
		TempMax:     Round(*m.TempMax),
		Timezone:    tz,
	}, nil
}

// NormalizeForecast maps each list item to a ForecastEntry in provider order.
// A nil list is a malformed payload; an empty one is not.
func NormalizeForecast(raw RawForecast) ([]ForecastEntry, error) {
	if raw.List == nil {
		return nil, missing("list")
	}
	entries := make([]ForecastEntry, 0, len(raw.List))
	for i, item := range raw.List {
		if item.Dt == nil {
			return nil, missing(fmt.Sprintf("list[%d].dt", i))
		}
		if item.Main == nil || item.Main.Temp == nil {
			return nil, missing(fmt.Sprintf("list[%d].main.temp", i))
		}
		if len(item.Weather) == 0 {
			return nil, missing(fmt.Sprintf("list[%d].weather[0]", i))
		}
		entries = append(entries, ForecastEntry{
			Dt:          *item.Dt,
			Temp:        Round(*item.Main.Temp),
			Icon:        item.Weather[0].Icon,
			Description: item.Weather[0].Description,
		})
	}
	return entries, nil
}

// HourlyView returns the first MaxHourly entries with now <= dt < now+24h.
func HourlyView(entries []ForecastEntry, now time.Time) []ForecastEntry {
	end := now.Add(hourlyWindow)

	hourly := make([]ForecastEntry, 0, MaxHourly)
	for _, e := range entries {
		ts := e.Time()
		if ts.Before(now) || !ts.Before(end) {
			continue
		}
		hourly = append(hourly, e)
		if len(hourly) == MaxHourly {
			break
		}
	}
	return hourly
}

// DailyView keeps the earliest entry of each UTC calendar day, collecting at most
// MaxDaily+1 days, and drops the first (partial) day.
func DailyView(entries []ForecastEntry) []DailyEntry {
	seen := make(map[string]struct{}, MaxDaily+1)
	days := make([]DailyEntry, 0, MaxDaily+1)

	for _, e := range entries {
		if len(days) == MaxDaily+1 {
			break
		}
		ts := e.Time()
		key := DayKey(ts)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, DailyEntry{Entry: e, DayName: ts.Weekday().String()})
	}

	if len(days) == 0 {
		return []DailyEntry{}
	}
	return days[1:]
}

// DayKey returns the UTC calendar-day key of a timestamp.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// Aggregate runs the whole pipeline. It fails as a whole if either payload is malformed.
func Aggregate(current RawCurrent, forecast RawForecast, now time.Time) (Report, error) {
	cw, err := NormalizeCurrent(current)
	if err != nil {
		return Report{}, fmt.Errorf("normalize current: %w", err)
	}
	entries, err := NormalizeForecast(forecast)
	if err != nil {
		return Report{}, fmt.Errorf("normalize forecast: %w", err)
	}
	return Report{
		Current: cw,
		Hourly:  HourlyView(entries, now),
		Daily:   DailyView(entries),
	}, nil
}
