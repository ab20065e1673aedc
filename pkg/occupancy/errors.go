package occupancy

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// Domain-level error values returned by the occupancy service.
var (
	ErrLotNotFound         = fmt.Errorf("%w: parking lot", ErrNotFound)
	ErrSpotNotFound        = fmt.Errorf("%w: parking spot", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("%w: user", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("%w: active reservation", ErrNotFound)
	ErrBookingNotFound     = fmt.Errorf("%w: active booking", ErrNotFound)

	ErrSpotOccupied            = fmt.Errorf("%w: spot already occupied", ErrConflict)
	ErrSpotStateChanged        = fmt.Errorf("%w: spot status changed concurrently", ErrConflict)
	ErrLotFull                 = fmt.Errorf("%w: parking lot is full", ErrConflict)
	ErrLotOverCapacity         = fmt.Errorf("%w: spot removal would exceed lot capacity", ErrConflict)
	ErrLotHasActiveClaims      = fmt.Errorf("%w: parking lot has active reservations or bookings", ErrConflict)
	ErrActiveReservationExists = fmt.Errorf("%w: user already holds an active reservation", ErrConflict)
	ErrActiveBookingExists     = fmt.Errorf("%w: user already holds an active booking", ErrConflict)
	ErrReservationClosed       = fmt.Errorf("%w: reservation already released", ErrConflict)
	ErrBookingClosed           = fmt.Errorf("%w: booking already released", ErrConflict)
	ErrDuplicateUsername       = fmt.Errorf("%w: username already exists", ErrConflict)

	ErrAdminRequired      = fmt.Errorf("%w: admin role required", ErrUnauthorized)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrSessionNotFound    = fmt.Errorf("%w: session not found or revoked", ErrUnauthorized)

	ErrInvalidUserID        = fmt.Errorf("%w: user id", ErrInvalidInput)
	ErrInvalidLotID         = fmt.Errorf("%w: lot id", ErrInvalidInput)
	ErrInvalidSpotID        = fmt.Errorf("%w: spot id", ErrInvalidInput)
	ErrInvalidReservationID = fmt.Errorf("%w: reservation id", ErrInvalidInput)
	ErrInvalidBookingID     = fmt.Errorf("%w: booking id", ErrInvalidInput)
	ErrInvalidAmountCents   = fmt.Errorf("%w: amount cents", ErrInvalidInput)
	ErrInvalidSpotStatus    = fmt.Errorf("%w: spot status", ErrInvalidInput)
	ErrInvalidMetadataJSON  = fmt.Errorf("%w: metadata json", ErrInvalidInput)
	ErrInvalidLotDetails    = fmt.Errorf("%w: lot details", ErrInvalidInput)
	ErrInvalidMaxSpots      = fmt.Errorf("%w: max spots", ErrInvalidInput)
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// ErrorKind reports which of the four error kinds err belongs to, or nil.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrUnauthorized, ErrInvalidInput} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
