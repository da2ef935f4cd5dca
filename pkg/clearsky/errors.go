package clearsky

import "errors"

// Run-aborting failures. A run that fails with one of these produces no star count.
var (
	ErrDecode    = errors.New("image could not be decoded")
	ErrDimension = errors.New("image smaller than template")
	ErrMatch     = errors.New("template match failed")
)

// Non-fatal failures. They are logged and reported on the Outcome; the
// star count of the run stands.
var (
	ErrTransport = errors.New("alert transport failed")
	ErrSinkWrite = errors.New("annotated image write failed")
)

// IsRunFatal reports whether err aborts a detection run.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrDimension) || errors.Is(err, ErrMatch)
}
