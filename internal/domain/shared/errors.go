package shared

// DomainError is an error with a stable code the interface layer can
// map onto an HTTP status. The code uses the domain's bare vocabulary;
// dto.NormalizeErrorCode translates it to the wire format.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "invalid input")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "operation not allowed in current state")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "resource was modified concurrently")
)
