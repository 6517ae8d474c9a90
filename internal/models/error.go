package models

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping.
// The set is closed; callers switch on it exhaustively.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindAccountLocked
	KindForbidden
	KindNotFound
	KindRateLimited
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindAccountLocked:
		return "account_locked"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Reason is a finer classification inside a Kind. It is used for logging
// and tests; clients only ever see the Message.
type Reason string

const (
	ReasonInvalidCredentials Reason = "INVALID_CREDENTIALS"
	ReasonAccountLocked      Reason = "ACCOUNT_LOCKED"
	ReasonInvalidOrExpired   Reason = "INVALID_OR_EXPIRED"
	ReasonMissingToken       Reason = "MISSING_TOKEN"
	ReasonMalformed          Reason = "MALFORMED"
	ReasonBadSignature       Reason = "BAD_SIGNATURE"
	ReasonExpired            Reason = "EXPIRED"
	ReasonIssuerMismatch     Reason = "ISSUER_MISMATCH"
	ReasonAudienceMismatch   Reason = "AUDIENCE_MISMATCH"
	ReasonSubjectNotFound    Reason = "SUBJECT_NOT_FOUND"
	ReasonAccountDeactivated Reason = "ACCOUNT_DEACTIVATED"
	ReasonStaleToken         Reason = "STALE_TOKEN"
	ReasonWrongPassword      Reason = "WRONG_CURRENT_PASSWORD"
	ReasonPasswordReused     Reason = "PASSWORD_REUSED"
	ReasonWeakPassword       Reason = "WEAK_PASSWORD"
	ReasonCSRFMissing        Reason = "CSRF_MISSING"
	ReasonCSRFInvalid        Reason = "CSRF_INVALID"
)

// Error is the single error type returned across the auth subsystem.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on Reason when the target specifies one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// NewError builds a classified error.
func NewError(kind Kind, reason Reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Wrap attaches an underlying cause while keeping the classification.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Reason: e.Reason, Message: e.Message, Err: err}
}

// WithReason returns a copy carrying a different reason.
func (e *Error) WithReason(reason Reason) *Error {
	return &Error{Kind: e.Kind, Reason: reason, Message: e.Message, Err: e.Err}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the Reason of err, or "" when unclassified.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrConflict       = &Error{Kind: KindConflict, Message: "an account with this email already exists"}
	ErrUnauthorized   = &Error{Kind: KindAuthentication, Message: "unauthorized"}
	ErrForbidden      = &Error{Kind: KindForbidden, Message: "you do not have permission to perform this action"}
	ErrBadRequest     = &Error{Kind: KindValidation, Message: "bad request"}
	ErrInternalServer = &Error{Kind: KindInternal, Message: "internal server error"}
	ErrRateLimited    = &Error{Kind: KindRateLimited, Message: "too many requests, please try again later"}
	ErrConfiguration  = &Error{Kind: KindConfiguration, Message: "invalid configuration"}

	// Login collapses unknown email, wrong password and deactivated account
	// into this one error so responses are byte-identical.
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Reason: ReasonInvalidCredentials, Message: "Incorrect email or password"}
	ErrAccountLocked      = &Error{Kind: KindAccountLocked, Reason: ReasonAccountLocked, Message: "Account is temporarily locked. Please try again later."}

	ErrResetTokenInvalid = &Error{Kind: KindAuthentication, Reason: ReasonInvalidOrExpired, Message: "Token is invalid or has expired"}
	ErrWrongPassword     = &Error{Kind: KindAuthentication, Reason: ReasonWrongPassword, Message: "Your current password is wrong"}
	ErrPasswordReused    = &Error{Kind: KindValidation, Reason: ReasonPasswordReused, Message: "New password must be different from the current password"}

	ErrCSRFMissing = &Error{Kind: KindForbidden, Reason: ReasonCSRFMissing, Message: "CSRF token missing"}
	ErrCSRFInvalid = &Error{Kind: KindForbidden, Reason: ReasonCSRFInvalid, Message: "CSRF token invalid"}
)

// ValidationError builds a 400-class error with a caller-facing message.
func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// ConfigurationError builds a fatal startup error.
func ConfigurationError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// AuthenticationError builds a 401-class error carrying a token failure reason.
func AuthenticationError(reason Reason, message string) *Error {
	return &Error{Kind: KindAuthentication, Reason: reason, Message: message}
}
