package orders

import "fmt"

// ValidationError: malformed or missing caller input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError: a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InsufficientStockError: the requested quantity exceeds what is available.
// The whole submission rolls back when this is returned.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.Name, e.Requested, e.Available)
}

// InvalidStateError: the operation does not apply to the order's current
// payment method or status.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return e.Msg }

// AlreadyVerifiedError: the idempotency guard on payment verification.
type AlreadyVerifiedError struct {
	OrderID int64
}

func (e *AlreadyVerifiedError) Error() string {
	return fmt.Sprintf("payment for order %d already verified", e.OrderID)
}

// PersistenceError wraps a storage failure after the unit of work rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
