// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an adapter failure so callers can choose the
// right recovery: fall through to the next backend, retry after a
// backoff, or surface immediately.
type ErrorKind int

const (
	// KindUnavailable covers connection refusals, 5xx responses, and
	// anything that marks the backend as down right now.
	KindUnavailable ErrorKind = iota

	// KindTimeout means the per-call budget elapsed before a reply.
	KindTimeout

	// KindRateLimited means the backend returned a 429 or equivalent.
	KindRateLimited

	// KindMalformed means the backend answered but the payload could
	// not be decoded or was missing the completion text.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// AdapterError is the uniform error type returned by all adapters.
type AdapterError struct {
	Backend BackendID
	Kind    ErrorKind
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError wraps err with the backend and failure kind.
func NewAdapterError(backend BackendID, kind ErrorKind, err error) *AdapterError {
	return &AdapterError{Backend: backend, Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err. Errors that are not
// AdapterErrors are treated as unavailable, the most pessimistic
// classification for routing purposes.
func KindOf(err error) ErrorKind {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnavailable
}
