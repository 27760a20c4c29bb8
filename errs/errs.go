// ABOUTME: Error taxonomy for the sync pipeline
// ABOUTME: Classifies failures as transport, auth, configuration, validation, or partial upload
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error. Kinds are strings so they read well in
// logs and in the run ledger.
type Kind string

const (
	// KindTransport is a network, timeout, or remote server failure.
	KindTransport Kind = "TRANSPORT"

	// KindAuth is an invalid or expired credential.
	KindAuth Kind = "AUTH"

	// KindConfig is a missing setting or a named remote resource that does not exist.
	KindConfig Kind = "CONFIGURATION"

	// KindValidation is a record-level problem. It is counted, not raised.
	KindValidation Kind = "VALIDATION"

	// KindPartialUpload is a platform-reported per-record rejection. It is counted, not raised.
	KindPartialUpload Kind = "PARTIAL_UPLOAD"

	// KindUnknown is anything unclassified.
	KindUnknown Kind = "UNKNOWN"
)

// Error is a classified error with an optional remediation step for the operator.
type Error struct {
	Kind   Kind
	Op     string
	Remedy string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps err as a transport failure.
func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Auth wraps err as a credential failure.
func Auth(op string, err error, remedy string) error {
	return &Error{Kind: KindAuth, Op: op, Err: err, Remedy: remedy}
}

// Config builds a configuration error with a remediation step.
func Config(op string, remedy string, format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: op, Err: fmt.Errorf(format, args...), Remedy: remedy}
}

// Validation builds a record-level error.
func Validation(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// PartialUpload records that the platform rejected some of the submitted records.
func PartialUpload(op string, failed, attempted int) error {
	return &Error{Kind: KindPartialUpload, Op: op, Err: fmt.Errorf("%d of %d records rejected", failed, attempted)}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// RemedyOf returns the first remediation step found in err's chain.
func RemedyOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Remedy != "" {
			return e.Remedy
		}
		err = e.Err
	}
	return ""
}

// IsFatal reports whether err must abort a run. Validation and partial upload
// errors are recovered where they occur.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case "", KindValidation, KindPartialUpload:
		return false
	default:
		return true
	}
}
