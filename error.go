package redirect

import (
	"errors"
)

var (
	// ErrInvalidParameter is returned when a parameter fails validation.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter is returned when a required parameter is nil.
	ErrNilParameter = errors.New("nil parameter")

	// ErrInvalidKeyMaterial is returned at construction time when the
	// configured public key or certificate PEM cannot be parsed into a key
	// suitable for token verification.
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrIDGeneratorFailed is returned when the CSPRNG-backed id generator
	// fails.
	ErrIDGeneratorFailed = errors.New("id generation failed")

	// ErrInvalidState is returned when a callback carries a provider error
	// response, or its state parameter doesn't match the single-use state
	// previously bound to the caller's session.
	ErrInvalidState = errors.New("invalid state or error")

	// ErrImplicitGrantNotAllowed is returned when a callback without an
	// authorization code arrives at a processor that has no token verifier
	// configured.
	ErrImplicitGrantNotAllowed = errors.New("implicit grant not allowed")

	// ErrCodeExchange is returned when the identity provider fails the code
	// exchange or the subsequent user-info call. The provider's error is
	// preserved in the wrap chain.
	ErrCodeExchange = errors.New("couldn't exchange the code for tokens")

	// ErrUserIDResolution is returned when processing completes without a
	// verified subject identifier: the verifier rejected the id_token, or the
	// user-info response carried no subject claim.
	ErrUserIDResolution = errors.New("couldn't obtain the user id")

	// ErrTokenVerification classifies an id_token rejected during
	// verification (bad signature, expired, wrong issuer/audience/nonce).
	// Rejected tokens are expected adversarial input, not faults.
	ErrTokenVerification = errors.New("id_token verification failed")
)

// ProviderError represents a failure reported by the identity provider
// collaborator during a code exchange or user-info call. The underlying
// transport/API error is available via Unwrap.
type ProviderError struct {
	// Op is the operation that failed, for example "idp.ExchangeCode".
	Op string

	// Err is the underlying error reported by the provider or its transport.
	Err error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err == nil:
		return "provider error"
	case e.Op != "":
		return e.Op + ": provider error: " + e.Err.Error()
	default:
		return "provider error: " + e.Err.Error()
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }
