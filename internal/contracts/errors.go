package contracts

import "errors"

// Error taxonomy shared by the engine, the service and the adapters.
// Wrap with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrNotFound portfolio/position reference cannot be resolved
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput return series too short, non-finite or out-of-domain inputs
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration risk limits or engine config outside a sane domain
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDependencyFailure a collaborator (store, market data) call failed
	ErrDependencyFailure = errors.New("dependency failure")
)
