package weather

// RawCurrent is the OpenWeatherMap /data/2.5/weather payload. Pointer fields are required
// and checked during normalization.
type RawCurrent struct {
	Main    *RawMain       `json:"main"`
	Wind    *RawWind       `json:"wind"`
	Weather []RawCondition `json:"weather"`
	Name    *string        `json:"name"`
	Sys     *RawSys        `json:"sys"`
	// Timezone is the location's UTC offset in seconds. Optional.
	Timezone *int `json:"timezone"`
}

type RawMain struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	Humidity  *float64 `json:"humidity"`
	Pressure  *float64 `json:"pressure"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
}

type RawWind struct {
	Speed *float64 `json:"speed"`
}

type RawSys struct {
	Country *string `json:"country"`
}

// RawCondition is one element of the provider's "weather" array.
type RawCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// RawForecast is the OpenWeatherMap /data/2.5/forecast payload.
type RawForecast struct {
	List []RawForecastItem `json:"list"`
}

// RawForecastItem is one element of the forecast list.
type RawForecastItem struct {
	Dt      *int64         `json:"dt"`
	Main    *RawMain       `json:"main"`
	Weather []RawCondition `json:"weather"`
}
