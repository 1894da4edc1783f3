package validation

import (
	"net/url"
	"strings"

	apperrors "go-image-worsen/internal/errors"
)

// LocationValidator checks image locations before any I/O happens
type LocationValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewLocationValidator accepts local paths, http(s) URLs and azblob locations
func NewLocationValidator() *LocationValidator {
	return &LocationValidator{
		allowedSchemes: []string{"http", "https", "azblob"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewLocationValidatorWithOptions creates a validator with custom remote
// schemes and hosts
func NewLocationValidatorWithOptions(schemes []string, hosts []string) *LocationValidator {
	return &LocationValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateLocation validates a local path or remote URL
func (v *LocationValidator) ValidateLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return apperrors.NewValidationError("location cannot be empty", nil)
	}

	if !looksLikeURL(location) {
		return nil
	}

	parsedURL, err := url.Parse(location)
	if err != nil {
		return apperrors.NewValidationError("invalid URL format", err).WithDetails(location)
	}

	if !v.isSchemeAllowed(strings.ToLower(parsedURL.Scheme)) {
		return apperrors.NewValidationError("URL scheme not allowed", nil).WithDetails(location)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil).WithDetails(location)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Host) {
		return apperrors.NewValidationError("URL host not allowed", nil).WithDetails(location)
	}

	return nil
}

// looksLikeURL treats "scheme://" prefixes as URLs and everything else,
// including Windows drive letters, as local paths
func looksLikeURL(location string) bool {
	i := strings.Index(location, "://")
	return i > 1
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *LocationValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed checks if the URL host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *LocationValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
