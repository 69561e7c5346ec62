package module

import (
	"runtime/debug"

	"github.com/reglet-dev/modbridge/domain/errors"
)

// Guard runs fn and converts a panic into a *errors.FaultError naming site.
// The zero T is returned alongside the fault.
func Guard[T any](site string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = &errors.FaultError{
				Value: r,
				Site:  site,
				Stack: debug.Stack(),
			}
		}
	}()
	return fn()
}

// guardErr is Guard for closures that only report an error.
func guardErr(site string, fn func() error) error {
	_, err := Guard(site, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
