package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput reports an aggregation over an empty series.
	ErrEmptyInput = errors.New("empty input series")

	// ErrStoreUnavailable reports a structural store I/O failure. It aborts
	// the whole operation; absence of a key is not a failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrProviderUnavailable reports a structurally unreachable provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrUnknownProvider reports a provider name with no registered client.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError wraps a single fetch failure. Retryable marks transient
// conditions (rate limit, 5xx, network) worth one more attempt per gap.
type ProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a retryable provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}
