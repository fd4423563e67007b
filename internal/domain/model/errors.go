package model

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes engine errors for recovery decisions.
type ErrorKind string

const (
	// KindSourceUnavailable covers network failures, timeouts and non-success
	// statuses from an external collaborator.
	KindSourceUnavailable ErrorKind = "SOURCE_UNAVAILABLE"

	// KindMalformedResponse means a source answered with data that failed
	// validation. Recovered exactly like KindSourceUnavailable.
	KindMalformedResponse ErrorKind = "MALFORMED_RESPONSE"

	// KindConfiguration is a missing or invalid rule set, rate table or crop
	// configuration. Fatal at startup; never recovered per request.
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
)

type EngineError struct {
	Kind    ErrorKind
	Source  string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Source != "" {
		return fmt.Sprintf("%s: %s (source=%s)", e.Kind, msg, e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func SourceUnavailable(source string, err error) *EngineError {
	return &EngineError{Kind: KindSourceUnavailable, Source: source, Message: "source unavailable", Err: err}
}

func MalformedResponse(source string, err error) *EngineError {
	return &EngineError{Kind: KindMalformedResponse, Source: source, Message: "malformed response", Err: err}
}

func ConfigurationError(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func kindOf(err error) (ErrorKind, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}

// IsRecoverable reports whether a collector should absorb err by falling back
// to its degraded default. Unclassified errors are treated as unavailable
// sources.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := kindOf(err)
	return !ok || kind == KindSourceUnavailable || kind == KindMalformedResponse
}

func IsConfigurationError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindConfiguration
}

func IsMalformed(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindMalformedResponse
}
