package errors

import "fmt"

// ErrorCode represents a Stockpile error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"            // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"       // 404
	ErrStorageReadAnomaly ErrorCode = "STORAGE_READ_ANOMALY" // 500, reported as a warning
	ErrInternal           ErrorCode = "INTERNAL"             // 500
)

// Validation messages shown verbatim to the user.
const (
	MsgFieldsRequired   = "All fields are required."
	MsgQuantityPositive = "Quantity must be a positive number."
)

// StockError represents a structured error with code, status, and details.
type StockError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *StockError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid input.
func NewInvalidRequest(msg string) *StockError {
	return &StockError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an item cannot be found.
func NewNotFound(id int64) *StockError {
	return &StockError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("item not found: %d", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *StockError {
	return &StockError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewStorageReadAnomaly describes persisted content that could not be decoded.
// The store recovers from it by starting empty.
func NewStorageReadAnomaly(key string, cause error) *StockError {
	msg := fmt.Sprintf("stored inventory under %q is unreadable; starting with an empty inventory", key)
	details := map[string]any{"key": key}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &StockError{
		Code:    ErrStorageReadAnomaly,
		Status:  500,
		Message: msg,
		Details: details,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *StockError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &StockError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a StockError with the given code.
func Is(err error, code ErrorCode) bool {
	if sErr, ok := err.(*StockError); ok {
		return sErr.Code == code
	}
	return false
}
