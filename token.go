package redirect

import "encoding/json"

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// IDToken is an oidc id_token
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

// TokenFields is the raw field set used to construct an immutable Token. Any
// field may be empty; an ExpiresIn of 0 means the provider didn't report a
// lifetime.
type TokenFields struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// Token is the canonical, immutable token record produced by processing a
// callback. A Token is never mutated after construction; Merge produces a new
// instance. The caller owns the Token once processing returns.
type Token struct {
	accessToken  AccessToken
	idToken      IDToken
	refreshToken RefreshToken
	tokenType    string
	expiresIn    int64
}

// NewToken creates a Token from the given fields.
func NewToken(f TokenFields) *Token {
	return &Token{
		accessToken:  AccessToken(f.AccessToken),
		idToken:      IDToken(f.IDToken),
		refreshToken: RefreshToken(f.RefreshToken),
		tokenType:    f.TokenType,
		expiresIn:    f.ExpiresIn,
	}
}

// AccessToken returns the token's access_token, which may be empty.
func (t *Token) AccessToken() AccessToken { return t.accessToken }

// IDToken returns the token's id_token, which may be empty.
func (t *Token) IDToken() IDToken { return t.idToken }

// RefreshToken returns the token's refresh_token, which may be empty.
func (t *Token) RefreshToken() RefreshToken { return t.refreshToken }

// Type returns the token_type, which may be empty.
func (t *Token) Type() string { return t.tokenType }

// ExpiresIn returns the access token lifetime in seconds, or 0 when the
// provider didn't report one.
func (t *Token) ExpiresIn() int64 { return t.expiresIn }

// Merge returns a new Token combining the receiver with freshly exchanged
// tokens: per field, the fresh value wins whenever it's set, otherwise the
// receiver's value is kept. A nil fresh Token yields a copy of the receiver.
func (t *Token) Merge(fresh *Token) *Token {
	merged := *t
	if fresh == nil {
		return &merged
	}
	if fresh.accessToken != "" {
		merged.accessToken = fresh.accessToken
	}
	if fresh.idToken != "" {
		merged.idToken = fresh.idToken
	}
	if fresh.refreshToken != "" {
		merged.refreshToken = fresh.refreshToken
	}
	if fresh.tokenType != "" {
		merged.tokenType = fresh.tokenType
	}
	if fresh.expiresIn != 0 {
		merged.expiresIn = fresh.expiresIn
	}
	return &merged
}
