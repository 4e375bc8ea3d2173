package redirect

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/authkit/redirect/internal/strutils"
)

// ClientSecret is the relying party's secret
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// supportedResponseTypes are the individual response types a Config's
// space-delimited ResponseType may be composed of.
var supportedResponseTypes = []string{"code", "token", "id_token"}

// Config represents the configuration for processing authorization redirects
// from one identity provider on behalf of one relying party.
type Config struct {
	// Domain is the identity provider's domain, for example
	// "tenant.example-idp.com". A scheme is optional and defaults to https.
	Domain string

	// ClientID is the relying party id, also the expected audience of any
	// id_token processed.
	ClientID string

	// ClientSecret is the relying party secret. It is required unless
	// PublicKeyPEM is provided, and doubles as the HS256 shared secret when
	// the response type can carry an id_token.
	ClientSecret ClientSecret

	// ResponseType is the space-delimited response type requested from the
	// provider: "code", "token", "id_token" or a combination. Empty defaults
	// to "code".
	ResponseType string

	// PublicKeyPEM optionally holds a PEM-encoded PKIX public key or X.509
	// certificate. When set, id_tokens are verified with RS256 against this
	// key instead of HS256 with the client secret.
	PublicKeyPEM string

	// RedirectURL is the relying party URL the provider redirects back to.
	RedirectURL string

	// Scopes is an optional list of scopes to request beyond the required
	// "openid" scope.
	Scopes []string
}

// Validate the config. All problems are accumulated and reported together;
// a non-nil result is a fatal configuration error, raised at construction
// and never deferred to request time.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.Domain == "" {
		result = multierror.Append(result, fmt.Errorf("%s: domain is empty: %w", op, ErrInvalidParameter))
	} else if _, err := Issuer(c.Domain); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" && c.PublicKeyPEM == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret and public key are both empty: %w", op, ErrInvalidParameter))
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter))
	}
	for _, rt := range c.responseTypes() {
		if !strutils.StrListContains(supportedResponseTypes, rt) {
			result = multierror.Append(result, fmt.Errorf("%s: unsupported response type %q: %w", op, rt, ErrInvalidParameter))
		}
	}
	if c.PublicKeyPEM != "" {
		if _, err := ParsePublicKeyPEM(c.PublicKeyPEM); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
		}
	}
	return result.ErrorOrNil()
}

// responseTypes splits the space-delimited ResponseType, defaulting to
// "code" when empty.
func (c *Config) responseTypes() []string {
	if strings.TrimSpace(c.ResponseType) == "" {
		return []string{"code"}
	}
	return strutils.RemoveDuplicatesStable(strings.Fields(c.ResponseType), false)
}

// canCarryIDToken reports whether the configured response type may return
// tokens directly in the redirect, which requires a nonce and local id_token
// verification.
func (c *Config) canCarryIDToken() bool {
	types := c.responseTypes()
	return strutils.StrListContains(types, "token") || strutils.StrListContains(types, "id_token")
}

// Issuer derives the token issuer URL from a provider domain: the scheme
// defaults to https when absent and a trailing slash is enforced, so
// "tenant.example-idp.com" becomes "https://tenant.example-idp.com/".
func Issuer(domain string) (string, error) {
	const op = "redirect.Issuer"
	if domain == "" {
		return "", fmt.Errorf("%s: domain is empty: %w", op, ErrInvalidParameter)
	}
	issuer := domain
	if !strings.Contains(issuer, "://") {
		issuer = "https://" + issuer
	}
	u, err := url.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("%s: domain %q is invalid: %w", op, domain, ErrInvalidParameter)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		return "", fmt.Errorf("%s: domain %q scheme is not http or https: %w", op, domain, ErrInvalidParameter)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s: domain %q has no host: %w", op, domain, ErrInvalidParameter)
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	return issuer, nil
}
