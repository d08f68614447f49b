package operations

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrDuplicateOperation = errors.New("operation already registered")
	ErrInvalidDefinition  = errors.New("invalid operation definition")
	ErrRegistrySealed     = errors.New("registry is sealed")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func definitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}
