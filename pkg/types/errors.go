package types

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a price series is too short to compute an indicator.
var ErrInsufficientData = errors.New("insufficient data")

// TransportError represents a failure to reach the exchange or to make sense of its response.
// A cycle that hits one is aborted and retried on the next tick.
type TransportError struct {
	Command string // Exchange command, e.g. returnTicker
	Status  int    // HTTP status code, 0 if the request never completed
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Command, e.Status, e.Err)
	}

	return fmt.Sprintf("%s: transport error: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ExchangeError represents an error payload returned by the exchange, e.g. a rejected order
// or insufficient funds. It maps to a failed outcome rather than a fault.
type ExchangeError struct {
	Command string
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Command, e.Message)
}

// IsTransportError reports whether err wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsExchangeError reports whether err wraps an ExchangeError.
func IsExchangeError(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee)
}
