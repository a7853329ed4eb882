// File: internal/classify/classify.go

// Package classify maps raw automation errors onto a small stable vocabulary
// of failure kinds so that downstream consumers can branch on the kind instead
// of parsing error strings.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/stagecheck/api/schemas"
	"github.com/xkilldash9x/stagecheck/internal/browser"
)

// Failure is a classified error: a machine-readable kind plus the
// human-readable message that produced it.
type Failure struct {
	Kind    schemas.ErrorKind
	Message string
}

// matchNetError maps Chromium network error markers to failure kinds. The
// checks run in a fixed priority order; the first hit wins.
func matchNetError(msg string) (schemas.ErrorKind, bool) {
	switch {
	case strings.Contains(msg, "net::ERR_CONNECTION_REFUSED"):
		return schemas.ErrorConnectionRefused, true
	case strings.Contains(msg, "net::ERR_NAME_NOT_RESOLVED"):
		return schemas.ErrorDNS, true
	// Any TLS trouble, whatever the exact error code, is an ssl_error.
	case strings.Contains(strings.ToLower(msg), "ssl"):
		return schemas.ErrorSSL, true
	case strings.Contains(msg, "net::ERR_CONNECTION_TIMED_OUT"):
		return schemas.ErrorConnectionTimeout, true
	case strings.Contains(msg, "net::ERR_INTERNET_DISCONNECTED"):
		return schemas.ErrorNoInternet, true
	}
	return "", false
}

// Navigation classifies an error raised while navigating to url.
//
// Deadline expiry is always a timeout, even when the underlying cause was a
// slow network. Anything that did not come from the automation layer is
// unknown_error: the classifier refuses to guess about failures it did not
// cause.
func Navigation(err error, url string) Failure {
	if err == nil {
		return Failure{}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failure{
			Kind:    schemas.ErrorTimeout,
			Message: fmt.Sprintf("Navigation to %s timed out", url),
		}
	}
	if !browser.IsAutomation(err) {
		return Failure{Kind: schemas.ErrorUnknown, Message: err.Error()}
	}

	msg := err.Error()
	kind, ok := matchNetError(msg)
	if !ok {
		return Failure{Kind: schemas.ErrorNavigation, Message: "Navigation error: " + msg}
	}

	// Well-known transport failures get a message that names the likely
	// remedy instead of the raw Chromium error string.
	switch kind {
	case schemas.ErrorConnectionRefused:
		msg = fmt.Sprintf("Connection refused: Server at %s is not running or not accepting connections", url)
	case schemas.ErrorDNS:
		msg = fmt.Sprintf("DNS resolution failed: Could not resolve hostname in %s", url)
	case schemas.ErrorSSL:
		msg = fmt.Sprintf("SSL/TLS error: Certificate issue with %s", url)
	case schemas.ErrorConnectionTimeout:
		msg = fmt.Sprintf("Connection timed out: Server at %s did not respond", url)
	case schemas.ErrorNoInternet:
		msg = "No internet connection"
	}
	return Failure{Kind: kind, Message: msg}
}

// Action classifies an error raised while executing a non-navigation step.
func Action(err error) Failure {
	if err == nil {
		return Failure{}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failure{
			Kind:    schemas.ErrorTimeout,
			Message: "Timeout - element not found or page did not respond",
		}
	}
	if !browser.IsAutomation(err) {
		return Failure{Kind: schemas.ErrorUnknown, Message: err.Error()}
	}

	msg := err.Error()
	if kind, ok := matchNetError(msg); ok {
		return Failure{Kind: kind, Message: msg}
	}
	return Failure{Kind: schemas.ErrorBrowser, Message: msg}
}
