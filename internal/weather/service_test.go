package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSource struct {
	current     RawCurrent
	forecast    RawForecast
	currentErr  error
	forecastErr error
	calls       atomic.Int32
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Current(ctx context.Context, q Query) (RawCurrent, error) {
	f.calls.Add(1)
	return f.current, f.currentErr
}

func (f *fakeSource) Forecast(ctx context.Context, q Query) (RawForecast, error) {
	f.calls.Add(1)
	return f.forecast, f.forecastErr
}

// mapStore is a minimal Store for service tests.
type mapStore struct {
	mu    sync.Mutex
	snaps map[string][]Snapshot
}

func newMapStore() *mapStore { return &mapStore{snaps: make(map[string][]Snapshot)} }

func (m *mapStore) SaveSnapshot(q Query, s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[q.Key()] = append(m.snaps[q.Key()], s)
}

func (m *mapStore) GetLatest(q Query) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snaps[q.Key()]
	if len(s) == 0 {
		return Snapshot{}, errors.New("not found")
	}
	return s[len(s)-1], nil
}

func (m *mapStore) GetRange(q Query, from, to time.Time) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[q.Key()], nil
}

func validSource(t *testing.T) *fakeSource {
	t.Helper()
	f := &fakeSource{}
	if err := json.Unmarshal([]byte(`{"main": {"temp": 12.5, "feels_like": 11, "humidity": 80, "pressure": 1020, "temp_min": 10, "temp_max": 14},
		"wind": {"speed": 3}, "weather": [{"description": "overcast clouds", "icon": "04d"}], "name": "Tunis", "sys": {"country": "TN"}}`), &f.current); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	now := time.Now().Unix()
	f.forecast = RawForecast{List: []RawForecastItem{item(now+3600, 13), item(now+90000, 15)}}
	return f
}

func item(dt int64, temp float64) RawForecastItem {
	var it RawForecastItem
	it.Dt = &dt
	it.Main = &RawMain{Temp: &temp}
	it.Weather = []RawCondition{{Description: "clouds", Icon: "03d"}}
	return it
}

func TestServiceReportCachesRawPayloads(t *testing.T) {
	src := validSource(t)
	st := newMapStore()
	svc := NewService(st, src, 10*time.Minute)
	q := Query{City: "Tunis"}
	ctx := context.Background()

	report, snap, err := svc.Report(ctx, q, time.Now())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Current.Temp != 13 || report.Current.City != "Tunis" {
		t.Errorf("current = %+v", report.Current)
	}
	if len(report.Hourly) != 1 {
		t.Errorf("len(hourly) = %d, want 1", len(report.Hourly))
	}
	if snap.ID == "" || snap.Source != "fake" {
		t.Errorf("snapshot = %+v", snap)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}

	again, snap2, err := svc.Report(ctx, q, time.Now())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("calls after cached report = %d, want 2", n)
	}
	if snap2.ID != snap.ID || again.Current != report.Current {
		t.Errorf("cached report differs")
	}

	// An expired snapshot triggers a refetch.
	if _, _, err := svc.Report(ctx, q, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if n := src.calls.Load(); n != 4 {
		t.Errorf("calls after expiry = %d, want 4", n)
	}
}

func TestServiceRefreshFailsWhole(t *testing.T) {
	srcErr := &SourceError{Source: "fake", Status: 404, Message: "city not found"}
	src := validSource(t)
	src.forecastErr = srcErr
	st := newMapStore()
	svc := NewService(st, src, time.Minute)

	_, _, err := svc.Report(context.Background(), Query{City: "Nowhere"}, time.Now())
	var se *SourceError
	if !errors.As(err, &se) || se.Message != "city not found" {
		t.Fatalf("err = %v, want city not found SourceError", err)
	}
	if _, err := st.GetLatest(Query{City: "Nowhere"}); err == nil {
		t.Error("failed refresh should not store a snapshot")
	}
}

func TestServiceRefreshRejectsMalformedPayload(t *testing.T) {
	src := validSource(t)
	src.current = RawCurrent{}
	st := newMapStore()
	svc := NewService(st, src, time.Minute)

	if _, err := svc.Refresh(context.Background(), Query{City: "Tunis"}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
	if _, err := st.GetLatest(Query{City: "Tunis"}); err == nil {
		t.Error("malformed payload should not be stored")
	}
}

func TestServiceConfigErrorPropagates(t *testing.T) {
	src := &fakeSource{currentErr: ErrAPIKeyMissing, forecastErr: ErrAPIKeyMissing}
	svc := NewService(newMapStore(), src, 0)

	if _, _, err := svc.Report(context.Background(), Query{City: "Tunis"}, time.Now()); !errors.Is(err, ErrAPIKeyMissing) {
		t.Fatalf("err = %v, want ErrAPIKeyMissing", err)
	}
}

func TestServiceWithoutSource(t *testing.T) {
	svc := NewService(newMapStore(), nil, 0)
	if _, err := svc.Refresh(context.Background(), Query{City: "Tunis"}); err == nil {
		t.Fatal("expected error without a source")
	}
}

func TestServiceCacheDoesNotCrossUTCMidnight(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 10, 0, 0, time.UTC)
	src := validSource(t)
	src.forecast = RawForecast{}
	for i := 0; i < 40; i++ {
		src.forecast.List = append(src.forecast.List, item(now.Add(3*time.Hour+time.Duration(i)*3*time.Hour).Unix(), 15))
	}

	stale := Snapshot{
		ID:        "before-midnight",
		FetchedAt: time.Date(2026, 10, 18, 23, 50, 0, 0, time.UTC),
		Current:   src.current,
	}
	for i := 0; i < 40; i++ {
		dt := time.Date(2026, 10, 18, 21, 0, 0, 0, time.UTC).Add(time.Duration(i) * 3 * time.Hour)
		stale.Forecast.List = append(stale.Forecast.List, item(dt.Unix(), 14))
	}

	q := Query{City: "Tunis"}
	st := newMapStore()
	st.SaveSnapshot(q, stale)
	svc := NewService(st, src, 30*time.Minute)

	report, snap, err := svc.Report(context.Background(), q, now)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if snap.ID == stale.ID {
		t.Errorf("snapshot from the previous UTC day was served from cache")
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
	today := DayKey(now)
	for _, d := range report.Daily {
		if DayKey(d.Entry.Time()) == today {
			t.Errorf("daily view contains today (%s)", today)
		}
	}
}

// overlapSource only answers Current once Forecast has been called.
type overlapSource struct {
	*fakeSource
	forecastCalled chan struct{}
	once           sync.Once
}

func (o *overlapSource) Current(ctx context.Context, q Query) (RawCurrent, error) {
	select {
	case <-o.forecastCalled:
		return o.fakeSource.Current(ctx, q)
	case <-time.After(2 * time.Second):
		return RawCurrent{}, errors.New("forecast was not requested while current was in flight")
	}
}

func (o *overlapSource) Forecast(ctx context.Context, q Query) (RawForecast, error) {
	o.once.Do(func() { close(o.forecastCalled) })
	return o.fakeSource.Forecast(ctx, q)
}

func TestServiceRefreshFetchesConcurrently(t *testing.T) {
	src := &overlapSource{fakeSource: validSource(t), forecastCalled: make(chan struct{})}
	svc := NewService(newMapStore(), src, 0)

	if _, err := svc.Refresh(context.Background(), Query{City: "Tunis"}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
}

func TestServiceCurrentErrorWins(t *testing.T) {
	src := validSource(t)
	src.currentErr = &SourceError{Source: "fake", Status: 401, Message: "Invalid API key"}
	src.forecastErr = &SourceError{Source: "fake", Status: 404, Message: "city not found"}
	svc := NewService(newMapStore(), src, 0)

	_, err := svc.Refresh(context.Background(), Query{City: "Tunis"})
	var se *SourceError
	if !errors.As(err, &se) || se.Message != "Invalid API key" {
		t.Fatalf("err = %v, want the current-weather error", err)
	}
}

func TestServiceLogsFetchFailureAsError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	src := validSource(t)
	src.forecastErr = &SourceError{Source: "fake", Status: 500}
	if _, err := NewService(newMapStore(), src, 0).Refresh(context.Background(), Query{City: "Tunis"}); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), "ERROR: source fake fetch failed for tunis") {
		t.Errorf("log = %q, want an ERROR: line", buf.String())
	}
}
