package redirect

import "context"

// IdentityClient is the identity provider collaborator the Processor
// delegates its two network calls to. Implementations own the HTTP
// transport, timeouts and any retry policy; the Processor calls them
// sequentially and never retries. See the idp package for a reference
// implementation.
type IdentityClient interface {
	// ExchangeCode trades an authorization code for tokens at the provider's
	// token endpoint. A failure must be reported as a *ProviderError; a nil
	// error means the returned Token is complete, never partial.
	ExchangeCode(ctx context.Context, code string, redirectURI string) (*Token, error)

	// UserID fetches the subject identifier for accessToken from the
	// provider's user-info endpoint. A response without a subject claim is
	// reported as ("", nil), which the caller treats as a recoverable
	// authentication failure; transport/API failures must be reported as a
	// *ProviderError.
	UserID(ctx context.Context, accessToken AccessToken) (string, error)
}
