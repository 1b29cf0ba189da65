package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned for 401 responses. For the storage server
	// it usually means the node reassigned this account; the cached cluster
	// URL must be re-resolved before the next run.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrOverQuota is returned for a 400 response whose numeric body is the
	// over-quota code. Distinct from generic bad requests.
	ErrOverQuota = errors.New("storage quota exceeded")

	// ErrConcurrentModification is returned for 412 responses to conditional
	// writes: another client modified the record since we last saw it.
	ErrConcurrentModification = errors.New("concurrent server modification")

	// ErrServiceUnavailable is returned for 503 responses. Always soft.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAssertionExpired is returned by the token client when the identity
	// assertion is already expired, before any network traffic.
	ErrAssertionExpired = errors.New("identity assertion expired")

	// ErrInvalidCredentials is returned when the token server rejects the
	// assertion with 401.
	ErrInvalidCredentials = errors.New("invalid token server credentials")
)

// overQuotaCode is the numeric body the storage server sends with a 400 when
// the account is over its quota.
const overQuotaCode = "14"

// HTTPError carries an unclassified non-2xx storage server response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("storage server http %d: %s", e.StatusCode, e.Body)
}

// ConditionsRequiredError is returned by the token client for a 403 carrying
// condition URLs: the user must accept updated terms before tokens are
// issued.
type ConditionsRequiredError struct {
	URLs map[string]string
}

func (e *ConditionsRequiredError) Error() string {
	return "token server requires user consent to updated conditions"
}
