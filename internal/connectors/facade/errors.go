package facade

import (
	"errors"
	"fmt"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/model"
)

// InvocationError tags a failed connector call with the connector key and,
// for remote instances, the connector host.
type InvocationError struct {
	Op   model.Operation
	Key  string
	Host string
	Err  error
}

func (e *InvocationError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("connector %s on %s: %s: %v", e.Key, e.Host, e.Op, e.Err)
	}
	return fmt.Sprintf("connector %s: %s: %v", e.Key, e.Op, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

var sentinels = map[error]error{
	model.ErrUnsupportedOperation: framework.ErrUnsupportedOperation,
	model.ErrUnknownUID:           framework.ErrUnknownUID,
	model.ErrAlreadyExists:        framework.ErrAlreadyExists,
	model.ErrInvalidCredential:    framework.ErrInvalidCredential,
	model.ErrConnectionFailed:     framework.ErrConnectionFailed,
}

// Is matches the neutral model errors against the runtime error underneath.
func (e *InvocationError) Is(target error) bool {
	native, ok := sentinels[target]
	return ok && errors.Is(e.Err, native)
}
