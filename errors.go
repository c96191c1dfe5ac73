package twitter

import (
	"errors"
	"strings"
)

var (
	ErrConfiguration   = errors.New("twitter: invalid configuration")
	ErrAuthentication  = errors.New("twitter: authentication failed")
	ErrProfileLookup   = errors.New("twitter: profile lookup failed")
	ErrFetch           = errors.New("twitter: fetch failed")
	ErrPersistence     = errors.New("twitter: persistence failed")
	ErrMalformedRecord = errors.New("twitter: malformed record")
	ErrPageLoad        = errors.New("twitter: page load failed")
	ErrRenderTimeout   = errors.New("twitter: render timed out")
	ErrBrowserNotReady = errors.New("twitter: browser not initialized")
)

// ConfigurationError reports required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

// Error lists the missing variable names.
func (e *ConfigurationError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Missing, ", ")
}

// Is makes errors.Is(err, ErrConfiguration) hold.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
