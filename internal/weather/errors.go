package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a provider payload lacks a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrAPIKeyMissing is the configuration error for an absent provider credential.
	ErrAPIKeyMissing = errors.New("weather API key missing")
)

// DefaultSourceMessage is used when the data source gives no message of its own.
const DefaultSourceMessage = "Failed to fetch weather data"

// SourceError reports a non-success response from a data source.
type SourceError struct {
	Source  string
	Status  int
	Message string
}

func (e *SourceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = DefaultSourceMessage
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Source, msg)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Source, e.Status, msg)
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}
