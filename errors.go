package profit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the model configuration is unusable:
	// non-positive canvas size, mismatched mask dimensions, bad PSF.
	ErrInvalidConfig = errors.New("profit: invalid configuration")

	// ErrInvalidParameter is returned when a profile parameter is out of domain.
	ErrInvalidParameter = errors.New("profit: invalid parameter")

	// ErrBackendUnavailable is returned when a convolution backend cannot run.
	ErrBackendUnavailable = errors.New("profit: backend unavailable")

	// ErrNoSpecialFunction is returned when a profile needs a special function
	// that was not supplied.
	ErrNoSpecialFunction = errors.New("profit: special function not available")

	// ErrUnknownProfile is returned by NewProfile for unregistered kinds.
	ErrUnknownProfile = errors.New("profit: unknown profile kind")

	// ErrUnknownConvolver is returned by NewConvolver for unregistered kinds.
	ErrUnknownConvolver = errors.New("profit: unknown convolver kind")

	// ErrNoComputeEnv is returned when an accelerated convolver is requested
	// without a compute environment.
	ErrNoComputeEnv = errors.New("profit: no compute environment")

	// ErrEnvReleased is returned when a released SharedEnv is used.
	ErrEnvReleased = errors.New("profit: compute environment released")

	// ErrEvaluated is returned when a Model is modified or evaluated a second time.
	ErrEvaluated = errors.New("profit: model already evaluated")
)

// ParameterError describes a profile parameter that failed validation.
type ParameterError struct {
	Profile string
	Param   string
	Value   any
	Reason  string
}

func (e *ParameterError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("profit: %s: %s: %s", e.Profile, e.Param, e.Reason)
	}
	return fmt.Sprintf("profit: %s: %s=%v: %s", e.Profile, e.Param, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidParameter) hold.
func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// BackendError reports a convolution backend failure with the backend kind.
type BackendError struct {
	Kind ConvolverKind
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("profit: convolver %q: %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() []error { return []error{ErrBackendUnavailable, e.Err} }

func paramErr(profile, param string, value any, reason string) error {
	return &ParameterError{Profile: profile, Param: param, Value: value, Reason: reason}
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
