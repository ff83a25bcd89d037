package domain

import "errors"

var (
	// ErrUpstreamStatus is returned when the upstream API answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("upstream request failed")

	// ErrMalformedPayload is returned when the upstream body lacks the expected
	// intervals array / meta object or carries an unparseable time key.
	ErrMalformedPayload = errors.New("malformed upstream payload")

	// ErrUpstreamUnavailable wraps transport failures talking to the upstream API.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStoreUnavailable wraps connectivity failures talking to the store.
	ErrStoreUnavailable = errors.New("store unavailable")
)
