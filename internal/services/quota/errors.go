package quota

import "fmt"

type ErrorType string

const (
	ErrTypeConfig ErrorType = "CONFIG"
	ErrTypeStore  ErrorType = "STORE"
)

type QuotaError struct {
	Type      ErrorType
	Operation string
	Message   string
	UserID    uint
	Cause     error
}

func (e *QuotaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Quota %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Quota %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *QuotaError) Unwrap() error { return e.Cause }

func NewStoreError(operation, msg string, userID uint, cause error) *QuotaError {
	return &QuotaError{Type: ErrTypeStore, Operation: operation, Message: msg, UserID: userID, Cause: cause}
}
