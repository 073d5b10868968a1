package operations

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindInvalidCode
	KindAttemptsExceeded
	KindExpired
	KindForbidden
	KindUpstream
	KindIntegrity
	KindPersistence
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidCode:
		return "invalid_code"
	case KindAttemptsExceeded:
		return "attempts_exceeded"
	case KindExpired:
		return "expired"
	case KindForbidden:
		return "forbidden"
	case KindUpstream:
		return "upstream"
	case KindIntegrity:
		return "integrity"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

const (
	ErrMissingFields       = "missing_fields"
	ErrInvalidInput        = "invalid_input"
	ErrInvalidID           = "invalid_id"
	ErrAlreadyExists       = "already_exists"
	ErrUnsupportedCurrency = "unsupported_currency"
	ErrPaymentFailed       = "payment_failed"
	ErrPersistenceFailed   = "persistence_failed"
	ErrNotFound            = "not_found"
	ErrInstitutionNotFound = "institution_not_found"
	ErrExamNotFound        = "exam_not_found"
	ErrNotificationFailed  = "notification_failed"
	ErrAttemptsExceeded    = "attempts_exceeded"
	ErrInvalidCode         = "invalid_code"
	ErrCodeExpired         = "code_expired"
	ErrForbidden           = "forbidden"
	ErrInactiveAccount     = "inactive_account"
	ErrInactiveExam        = "inactive_exam"
	ErrIntegrity           = "integrity_error"
	ErrServerError         = "server_error"
)

// Error is the failure type returned by every operation. Code is safe to
// show to clients; Err carries the internal cause for logs only.
type Error struct {
	Kind      Kind
	Code      string
	Remaining int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Validation(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

func Persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Code: ErrPersistenceFailed, Err: err}
}

// As extracts an *Error from err. Anything else is reported as internal.
func As(err error) *Error {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr
	}
	return &Error{Kind: KindInternal, Code: ErrServerError, Err: err}
}

func IsKind(err error, kind Kind) bool {
	var opErr *Error
	return errors.As(err, &opErr) && opErr.Kind == kind
}
