package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-calendar/internal/metrics"
)

// Service fetches raw payloads from a Source, caches them in a Store and runs the
// aggregation pipeline on demand.
type Service struct {
	store  Store
	source Source
	maxAge time.Duration
}

// NewService creates a new Service. Snapshots younger than maxAge are served from the
// store; maxAge <= 0 disables the cache.
func NewService(store Store, source Source, maxAge time.Duration) *Service {
	return &Service{
		store:  store,
		source: source,
		maxAge: maxAge,
	}
}

// Refresh fetches current weather and forecast concurrently for q, validates both and
// stores them as a new snapshot. Either failure fails the whole refresh.
func (s *Service) Refresh(ctx context.Context, q Query) (Snapshot, error) {
	if s.source == nil {
		log.Printf("ERROR: No weather source configured for %s", q.Key())
		return Snapshot{}, fmt.Errorf("no weather source configured")
	}

	var (
		wg                      sync.WaitGroup
		current                 RawCurrent
		forecast                RawForecast
		currentErr, forecastErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		current, currentErr = s.source.Current(ctx, q)
	}()
	go func() {
		defer wg.Done()
		forecast, forecastErr = s.source.Forecast(ctx, q)
	}()
	wg.Wait()

	if currentErr != nil || forecastErr != nil {
		err := errors.Join(currentErr, forecastErr)
		log.Printf("ERROR: source %s fetch failed for %s: %v", s.source.Name(), q.Key(), err)
		return Snapshot{}, firstError(currentErr, forecastErr)
	}

	if _, err := NormalizeCurrent(current); err != nil {
		return Snapshot{}, fmt.Errorf("normalize current: %w", err)
	}
	if _, err := NormalizeForecast(forecast); err != nil {
		return Snapshot{}, fmt.Errorf("normalize forecast: %w", err)
	}

	snap := Snapshot{
		ID:        uuid.NewString(),
		Query:     q,
		Source:    s.source.Name(),
		FetchedAt: time.Now().UTC(),
		Current:   current,
		Forecast:  forecast,
	}
	if s.store != nil {
		s.store.SaveSnapshot(q, snap)
	}
	log.Printf("DEBUG: stored snapshot %s for %s (%d forecast entries)", snap.ID, q.Key(), len(forecast.List))
	return snap, nil
}

// Report returns the aggregated weather for q as seen at now, using a cached snapshot
// when one is fresh enough.
func (s *Service) Report(ctx context.Context, q Query, now time.Time) (Report, Snapshot, error) {
	snap, ok := s.cached(q, now)
	if ok {
		metrics.ReportCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.ReportCacheTotal.WithLabelValues("miss").Inc()
		var err error
		snap, err = s.Refresh(ctx, q)
		if err != nil {
			return Report{}, Snapshot{}, err
		}
	}

	report, err := Aggregate(snap.Current, snap.Forecast, now)
	if err != nil {
		return Report{}, Snapshot{}, err
	}
	return report, snap, nil
}

func (s *Service) cached(q Query, now time.Time) (Snapshot, bool) {
	if s.store == nil || s.maxAge <= 0 {
		return Snapshot{}, false
	}
	snap, err := s.store.GetLatest(q)
	if err != nil {
		return Snapshot{}, false
	}
	if now.Sub(snap.FetchedAt) > s.maxAge {
		return Snapshot{}, false
	}
	// The daily view drops the forecast's first day, which is only today if the
	// snapshot was fetched today.
	if DayKey(snap.FetchedAt) != DayKey(now) {
		return Snapshot{}, false
	}
	return snap, true
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(q Query) (Snapshot, error) {
	return s.store.GetLatest(q)
}

// History delegates to the underlying store.
func (s *Service) History(q Query, from, to time.Time) ([]Snapshot, error) {
	return s.store.GetRange(q, from, to)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
