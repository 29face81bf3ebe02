package catalog

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
)

// Error codes the catalog reports in the response envelope.
const (
	CodeAuthInvalid      = "AUTH_INVALID"
	CodeAuthUnauthorized = "AUTH_UNAUTHROIZED" // sic, as sent by the catalog
	CodeAuthKeyInvalid   = "AUTH_KEY_INVALID"
	CodeRateLimit        = "RATE_LIMIT"

	// CodeNoSession is local: an authenticated call was made before Login.
	CodeNoSession = "AUTH_NO_SESSION"
)

// ErrSceneNotFound is returned when the catalog has no scene for an identifier.
var ErrSceneNotFound = errors.New("scene not found")

type AuthenticationError struct {
	Code    string
	Message string
}

func (e *AuthenticationError) Error() string { return fmt.Sprintf("%s: %s.", e.Code, e.Message) }

type RateLimitError struct {
	Code    string
	Message string
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s: %s.", e.Code, e.Message) }

// CatalogError carries any other error code of the envelope.
type CatalogError struct {
	Code    string
	Message string
}

func (e *CatalogError) Error() string { return fmt.Sprintf("%s: %s.", e.Code, e.Message) }

// HTTPError is a non-2xx response that carried no envelope error code.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog status %d: %s", e.StatusCode, e.Body)
}

func classify(code, message string) error {
	switch code {
	case "":
		return nil
	case CodeAuthInvalid, CodeAuthUnauthorized, CodeAuthKeyInvalid:
		return &AuthenticationError{Code: code, Message: message}
	case CodeRateLimit:
		return &RateLimitError{Code: code, Message: message}
	default:
		return &CatalogError{Code: code, Message: message}
	}
}

func IsAuth(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

func outcomeOf(err error) string {
	var (
		ae *AuthenticationError
		re *RateLimitError
		ce *CatalogError
		he *HTTPError
	)
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.As(err, &ae):
		return observability.OutcomeAuthError
	case errors.As(err, &re):
		return observability.OutcomeRateLimited
	case errors.As(err, &ce):
		return observability.OutcomeCatalogError
	case errors.As(err, &he):
		return observability.OutcomeHTTPError
	default:
		return observability.OutcomeTransportError
	}
}
