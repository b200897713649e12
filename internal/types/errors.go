package types

import (
	"errors"
	"fmt"
)

// ErrConversion is returned when a typed extraction meets a value of another
// kind. It is recoverable; callers match it with errors.Is.
var ErrConversion = errors.New("conversion error")

// ContractViolation is the panic value raised when a caller breaks the value
// model's contract, e.g. ordering a record against a scalar or adding blobs.
// It signals a bug in the calling layer and is never returned as an error.
type ContractViolation struct {
	Op     string
	Detail string
}

func (e *ContractViolation) Error() string {
	return "contract violation: " + e.Op + ": " + e.Detail
}

// Violate panics with a *ContractViolation.
func Violate(op, format string, args ...any) {
	panic(&ContractViolation{Op: op, Detail: fmt.Sprintf(format, args...)})
}
