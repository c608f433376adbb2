package mapping

import "errors"

// Handler errors.
var (
	// ErrMissingFactory means an event arrived before the factory was bootstrapped.
	// Processing cannot continue.
	ErrMissingFactory = errors.New("factory entity missing")

	// ErrMissingBundle means the price bundle is absent after bootstrap.
	// Processing cannot continue.
	ErrMissingBundle = errors.New("bundle entity missing")

	// ErrUnknownPair is returned for pool events from a pair that was never created.
	// The event fails; processing continues.
	ErrUnknownPair = errors.New("unknown pair")
)

// IsFatal reports whether err must stop processing.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMissingFactory) || errors.Is(err, ErrMissingBundle)
}
