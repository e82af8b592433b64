package visindex

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned when a path does not address a node in the
	// current mirror state. It signals caller misuse; the index is unchanged.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidArgument is returned for arguments that can never be valid,
	// such as an empty path passed to add/remove or a row out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBackingModel wraps errors returned by the Provider.
	ErrBackingModel = errors.New("backing model")
)

func invalidPath(p Path, reason string) error {
	return fmt.Errorf("%w %s: %s", ErrInvalidPath, p, reason)
}

func backingErr(op string, p Path, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrBackingModel, op, p, err)
}
