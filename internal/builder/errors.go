package builder

import (
	"errors"
	"fmt"
)

var (
	// ErrBuild classifies failures before or during the image build.
	ErrBuild = errors.New("image build failed")
	// ErrPush classifies failed or unconfirmed registry pushes.
	ErrPush = errors.New("image push failed")
)

// LaunchError is returned by BuildImage. errors.Is matches both Kind and the
// underlying cause.
type LaunchError struct {
	Kind     error // ErrBuild or ErrPush
	ImageRef string
	// Response is the raw registry response for push failures.
	Response string
	Err      error
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("%v for %s", e.Kind, e.ImageRef)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Response != "" {
		msg += fmt.Sprintf(" (response: %s)", e.Response)
	}
	return msg
}

func (e *LaunchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
