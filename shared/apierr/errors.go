// Package apierr holds the error taxonomy shared by the discovery and insight clients.
package apierr

import (
	"errors"
	"fmt"
)

const (
	ServiceYouTube = "YouTube"
	ServiceGemini  = "Gemini"
)

// MissingCredentialError is returned before any network call when no key is configured.
type MissingCredentialError struct {
	Service string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s API key is missing. Please set it in settings.", e.Service)
}

// UpstreamError reports an explicit error payload or an unexpected response shape.
// Error returns the upstream message verbatim so it can be shown to the user as-is.
type UpstreamError struct {
	Service string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s returned an invalid response: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s returned an invalid response", e.Service)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TransportError is a network-level failure talking to a service.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to reach %s: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsMissingCredential(err error) bool {
	var target *MissingCredentialError
	return errors.As(err, &target)
}

func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
