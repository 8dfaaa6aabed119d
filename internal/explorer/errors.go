package explorer

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned for providers without a configured URL.
var ErrUnknownProvider = errors.New("unknown provider")

// UpstreamError reports a failed call to an explorer. StatusCode is zero when
// no HTTP response was received (timeout, connection failure).
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
