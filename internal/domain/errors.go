package domain

import (
	"errors"
	"fmt"
)

// ErrNoText rejects classification requests without text.
var ErrNoText = errors.New("no text provided")

// HTTPError is returned when the classifier answers with a non-2xx status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("classifier returned status %d: %s", e.Status, e.Body)
}

// TransportError wraps failures where no response was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("classifier transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// OutcomeOf maps a classifier error to its audit outcome.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return OutcomeHTTPError
	}
	return OutcomeTransportError
}
