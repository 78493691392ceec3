package weather

import (
	"context"
	"time"
)

// Source abstracts a weather data source that serves both current conditions and a
// multi-day forecast (e.g. OpenWeatherMap).
type Source interface {
	Name() string
	Current(ctx context.Context, q Query) (RawCurrent, error)
	Forecast(ctx context.Context, q Query) (RawForecast, error)
}

// Snapshot is one pair of raw payloads fetched together for a query.
type Snapshot struct {
	ID        string      `json:"id"`
	Query     Query       `json:"query"`
	Source    string      `json:"source"`
	FetchedAt time.Time   `json:"fetchedAt"` // always UTC
	Current   RawCurrent  `json:"current"`
	Forecast  RawForecast `json:"forecast"`
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveSnapshot(q Query, snapshot Snapshot)
	GetLatest(q Query) (Snapshot, error)
	GetRange(q Query, from, to time.Time) ([]Snapshot, error)
}
