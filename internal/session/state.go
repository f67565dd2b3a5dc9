package session

import (
	"errors"
	"fmt"

	"github.com/mangatl/mangatl/internal/models"
)

var (
	// ErrBusy is returned for anything but a response while a submission is in flight.
	ErrBusy = errors.New("a submission is already in progress")
	// ErrNotCollecting is returned when the collection is edited outside Collecting.
	ErrNotCollecting = errors.New("session is showing results; reset it to collect new images")
	// ErrEmptyCollection is returned when submitting with no images.
	ErrEmptyCollection = errors.New("no images to submit")
	// ErrInvalidTransition is returned for events the current state does not accept.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Event drives the session between states.
type Event int

const (
	EventSubmit Event = iota
	EventResponseOK
	EventResponseError
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventSubmit:
		return "submit"
	case EventResponseOK:
		return "responseOk"
	case EventResponseError:
		return "responseError"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Transition returns the state that follows from applying e in s. Every
// pair has an answer: either the next state or the reason it is refused.
func Transition(s models.SessionState, e Event) (models.SessionState, error) {
	switch s {
	case models.StateCollecting:
		switch e {
		case EventSubmit:
			return models.StateProcessing, nil
		case EventReset:
			return models.StateCollecting, nil
		}
	case models.StateProcessing:
		switch e {
		case EventResponseOK:
			return models.StateResults, nil
		case EventResponseError:
			return models.StateCollecting, nil
		case EventSubmit, EventReset:
			return s, ErrBusy
		}
	case models.StateResults:
		switch e {
		case EventReset:
			return models.StateCollecting, nil
		case EventSubmit:
			return s, ErrNotCollecting
		}
	}
	return s, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, e, s)
}
