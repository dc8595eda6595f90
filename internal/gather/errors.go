package gather

import (
	"errors"
	"fmt"
)

// ErrFetch matches every *FetchError via errors.Is.
var ErrFetch = errors.New("fetch failed")

// Fetch operations.
const (
	OpStocks       = "stocks"
	OpPriceHistory = "price history"
)

// FetchError reports a failed upstream call: a non-2xx status, a transport
// failure, or a response that could not be decoded.
type FetchError struct {
	Op     string // OpStocks or OpPriceHistory
	URL    string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

// Message is the human-readable text shown at the top of a view.
func (e *FetchError) Message() string {
	switch e.Op {
	case OpStocks:
		return "Failed to fetch stocks"
	case OpPriceHistory:
		return "Failed to fetch stock price"
	default:
		return "Failed to fetch " + e.Op
	}
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Message(), e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Message(), e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message(), e.Err)
	default:
		return e.Message()
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) true for any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// UserMessage returns the message to display for err: the FetchError
// message when err wraps one, otherwise err's text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message()
	}
	return err.Error()
}
