package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyInput is returned when a caller passes blank text or a
	// zero-length vector. Not retriable.
	ErrEmptyInput = errors.New("empty input")

	// ErrMalformedVector is returned when a stored vector literal cannot
	// be parsed back into a numeric sequence.
	ErrMalformedVector = errors.New("malformed vector literal")

	// ErrMalformedResponse is returned when a provider payload lacks the
	// expected structure.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ProviderError wraps a transient failure of an external model call. The
// orchestration layer treats it as a signal to drop to the next fallback
// tier, never as a reason to retry within the same query.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

// MarshalVector renders a vector in the datastore literal format
// [v0,v1,...,vn]. The literal round-trips exactly through UnmarshalVector.
func MarshalVector(v []float32) (string, error) {
	if len(v) == 0 {
		return "", ErrEmptyInput
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// UnmarshalVector parses a bracketed comma-separated literal back into a
// vector.
func UnmarshalVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyInput
	}
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: missing brackets in %q", ErrMalformedVector, truncate(s, 40))
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, fmt.Errorf("%w: empty literal", ErrMalformedVector)
	}
	parts := strings.Split(body, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d %q", ErrMalformedVector, i, strings.TrimSpace(p))
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// VectorCodec gives every provider the shared literal encoding, so the
// interface stays satisfied without each implementation repeating it.
type VectorCodec struct{}

func (VectorCodec) MarshalVector(v []float32) (string, error) { return MarshalVector(v) }

func (VectorCodec) UnmarshalVector(s string) ([]float32, error) { return UnmarshalVector(s) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
