package location

import (
	"context"
	"errors"
	"testing"

	"github.com/kelvins/geocoder"
)

func ptr(f float64) *float64 { return &f }

func defaultChain(place *Place) *Chain {
	return NewChain(place, Coordinates{}, City{City: "Tunis", Country: "TN"})
}

func TestChainResolve(t *testing.T) {
	tests := []struct {
		name         string
		in           Input
		wantStrategy string
		wantCity     string
		wantCoords   bool
		wantWarnings []string
	}{
		{
			name:         "coordinates win",
			in:           Input{Lat: ptr(36.8), Lon: ptr(10.18)},
			wantStrategy: "coordinates",
			wantCoords:   true,
			wantWarnings: []string{},
		},
		{
			name:         "no coordinates falls back to default city",
			in:           Input{},
			wantStrategy: "default-city",
			wantCity:     "Tunis",
			wantWarnings: []string{"Location permission denied"},
		},
		{
			name:         "services disabled",
			in:           Input{Lat: ptr(1), Lon: ptr(1), ServicesDisabled: true},
			wantStrategy: "default-city",
			wantCity:     "Tunis",
			wantWarnings: []string{"Location services disabled"},
		},
		{
			name:         "out of range coordinates",
			in:           Input{Lat: ptr(91), Lon: ptr(0)},
			wantStrategy: "default-city",
			wantCity:     "Tunis",
			wantWarnings: []string{"Unable to get location: coordinates 91,0 out of range"},
		},
		{
			name:         "place without geocoder is a city query",
			in:           Input{Place: "Sfax, TN"},
			wantStrategy: "place",
			wantCity:     "Sfax",
			wantWarnings: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := defaultChain(NewPlace("")).Resolve(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %q, want %q", res.Strategy, tt.wantStrategy)
			}
			if res.Query.City != tt.wantCity {
				t.Errorf("City = %q, want %q", res.Query.City, tt.wantCity)
			}
			if res.Query.HasCoords() != tt.wantCoords {
				t.Errorf("HasCoords = %v, want %v", res.Query.HasCoords(), tt.wantCoords)
			}
			if len(res.Warnings) != len(tt.wantWarnings) {
				t.Fatalf("Warnings = %q, want %q", res.Warnings, tt.wantWarnings)
			}
			for i := range tt.wantWarnings {
				if res.Warnings[i] != tt.wantWarnings[i] {
					t.Errorf("Warnings[%d] = %q, want %q", i, res.Warnings[i], tt.wantWarnings[i])
				}
			}
		})
	}
}

func TestPlaceGeocodes(t *testing.T) {
	var got geocoder.Address
	p := &Place{geocode: func(a geocoder.Address) (geocoder.Location, error) {
		got = a
		return geocoder.Location{Latitude: 35.67, Longitude: 10.1}, nil
	}}

	res, err := defaultChain(p).Resolve(context.Background(), Input{Place: "Kairouan,Tunisia"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.City != "Kairouan" || got.Country != "Tunisia" {
		t.Errorf("geocoded address = %+v", got)
	}
	if !res.Query.HasCoords() || *res.Query.Lat != 35.67 {
		t.Errorf("Query = %+v, want geocoded coordinates", res.Query)
	}
}

func TestPlaceGeocodeFailureFallsThrough(t *testing.T) {
	p := &Place{geocode: func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("ZERO_RESULTS")
	}}

	res, err := defaultChain(p).Resolve(context.Background(), Input{Place: "Nowhere", Lat: ptr(33.9), Lon: ptr(8.1)})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Strategy != "coordinates" {
		t.Errorf("Strategy = %q, want coordinates", res.Strategy)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %q, want one geocode warning", res.Warnings)
	}
}

func TestChainExhausted(t *testing.T) {
	_, err := NewChain(Coordinates{}).Resolve(context.Background(), Input{})
	if !errors.Is(err, ErrNoStrategy) {
		t.Fatalf("err = %v, want ErrNoStrategy", err)
	}
}

func TestChainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := defaultChain(NewPlace("")).Resolve(ctx, Input{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
