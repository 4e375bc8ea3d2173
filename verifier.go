package redirect

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2/jwt"
)

// Alg represents the signing algorithms supported for id_token verification.
type Alg string

const (
	// HS256 is HMAC-SHA256 with the relying party's client secret as the
	// shared key.
	HS256 Alg = "HS256"

	// RS256 is RSA-SHA256 with a resolved public key.
	RS256 Alg = "RS256"
)

// Verifier validates signed id_tokens received directly in a redirect
// (implicit grant) and extracts the verified subject identifier. Its
// verification context (algorithm, key, expected issuer and audience) is
// resolved once at construction and is immutable for its lifetime.
type Verifier struct {
	alg      Alg
	clientID string
	issuer   string

	hmacSecret []byte
	rsaKey     *rsa.PublicKey

	nowFunc func() time.Time
}

// NewHS256Verifier creates a Verifier that validates id_token signatures
// with HMAC-SHA256 using the relying party's client secret as the shared
// key. The expected audience is clientID and the expected issuer is derived
// from domain (see Issuer). Supported options: WithNow.
func NewHS256Verifier(domain string, clientID string, secret ClientSecret, opt ...Option) (*Verifier, error) {
	const op = "redirect.NewHS256Verifier"
	v, err := newVerifier(op, domain, clientID, opt...)
	if err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter)
	}
	v.alg = HS256
	v.hmacSecret = []byte(secret)
	return v, nil
}

// NewRS256Verifier creates a Verifier that validates id_token signatures
// with RSA-SHA256. The publicKeyPEM must be a PEM-encoded PKIX public key or
// X.509 certificate; malformed key material is a fatal configuration error
// here, never a per-request failure. The expected audience is clientID and
// the expected issuer is derived from domain (see Issuer). Supported
// options: WithNow.
func NewRS256Verifier(domain string, clientID string, publicKeyPEM string, opt ...Option) (*Verifier, error) {
	const op = "redirect.NewRS256Verifier"
	v, err := newVerifier(op, domain, clientID, opt...)
	if err != nil {
		return nil, err
	}
	key, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.alg = RS256
	v.rsaKey = key
	return v, nil
}

func newVerifier(op string, domain string, clientID string, opt ...Option) (*Verifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	issuer, err := Issuer(domain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getVerifierOpts(opt...)
	return &Verifier{
		clientID: clientID,
		issuer:   issuer,
		nowFunc:  opts.withNowFunc,
	}, nil
}

// Alg returns the verifier's signing algorithm.
func (v *Verifier) Alg() Alg { return v.alg }

// Issuer returns the issuer every verified id_token must carry.
func (v *Verifier) Issuer() string { return v.issuer }

// Verify validates idToken's signature, issuer, audience, expiry and nonce
// claim, returning the token's verified subject identifier. Both idToken and
// nonce must be non-empty; passing either empty is a caller bug and fails
// with ErrInvalidParameter. A token rejected on its own merits (bad
// signature, wrong alg, expired, wrong issuer/audience/nonce, missing
// subject) fails with an error wrapping ErrTokenVerification.
func (v *Verifier) Verify(idToken IDToken, nonce string) (string, error) {
	const op = "Verifier.Verify"
	if idToken == "" {
		return "", fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return "", fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}

	parsed, err := jwt.ParseSigned(string(idToken))
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse id_token: %w", op, ErrTokenVerification)
	}
	// Pin the expected alg before touching the key, so an HS256 token can
	// never be validated against an RSA public key (and vice versa).
	if len(parsed.Headers) != 1 || parsed.Headers[0].Algorithm != string(v.alg) {
		return "", fmt.Errorf("%s: id_token signing algorithm isn't %s: %w", op, v.alg, ErrTokenVerification)
	}

	var key interface{}
	switch v.alg {
	case HS256:
		key = v.hmacSecret
	case RS256:
		key = v.rsaKey
	}

	claims := jwt.Claims{}
	private := struct {
		Nonce string `json:"nonce"`
	}{}
	if err := parsed.Claims(key, &claims, &private); err != nil {
		return "", fmt.Errorf("%s: invalid id_token signature: %w", op, ErrTokenVerification)
	}
	expected := jwt.Expected{
		Issuer:   v.issuer,
		Audience: jwt.Audience{v.clientID},
		Time:     v.now(),
	}
	if err := claims.Validate(expected); err != nil {
		return "", fmt.Errorf("%s: invalid id_token claims: %w: %v", op, ErrTokenVerification, err)
	}
	if private.Nonce != nonce {
		return "", fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrTokenVerification)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%s: id_token has no subject: %w", op, ErrTokenVerification)
	}
	return claims.Subject, nil
}

func (v *Verifier) now() time.Time {
	if v.nowFunc != nil {
		return v.nowFunc()
	}
	return time.Now()
}

// ParsePublicKeyPEM parses an RSA public key from a PEM-encoded PKIX public
// key or X.509 certificate.
func ParsePublicKeyPEM(data string) (*rsa.PublicKey, error) {
	const op = "redirect.ParsePublicKeyPEM"
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found: %w", op, ErrInvalidKeyMaterial)
	}
	var rawKey interface{}
	var err error
	if rawKey, err = x509.ParsePKIXPublicKey(block.Bytes); err != nil {
		cert, certErr := x509.ParseCertificate(block.Bytes)
		if certErr != nil {
			return nil, fmt.Errorf("%s: not a PKIX public key or certificate: %w", op, ErrInvalidKeyMaterial)
		}
		rawKey = cert.PublicKey
	}
	rsaKey, ok := rawKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA public key: %w", op, ErrInvalidKeyMaterial)
	}
	return rsaKey, nil
}

// verifierOptions is the set of available options for Verifier functions
type verifierOptions struct {
	withNowFunc func() time.Time
}

// verifierDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func verifierDefaults() verifierOptions {
	return verifierOptions{}
}

// getVerifierOpts gets the verifier defaults and applies the opt overrides
// passed in
func getVerifierOpts(opt ...Option) verifierOptions {
	opts := verifierDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
