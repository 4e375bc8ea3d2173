package redirect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testIdentityClient is a canned IdentityClient for driving the processor's
// code grant path.
type testIdentityClient struct {
	exchangeTokens *Token
	exchangeErr    error
	userID         string
	userIDErr      error

	gotCode        string
	gotRedirectURI string
	gotAccessToken AccessToken
}

func (c *testIdentityClient) ExchangeCode(_ context.Context, code string, redirectURI string) (*Token, error) {
	c.gotCode = code
	c.gotRedirectURI = redirectURI
	if c.exchangeErr != nil {
		return nil, c.exchangeErr
	}
	return c.exchangeTokens, nil
}

func (c *testIdentityClient) UserID(_ context.Context, accessToken AccessToken) (string, error) {
	c.gotAccessToken = accessToken
	if c.userIDErr != nil {
		return "", c.userIDErr
	}
	return c.userID, nil
}

// testCallbackRequest builds a GET callback request carrying params.
func testCallbackRequest(t *testing.T, params url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "https://rp.example.com/callback?"+params.Encode(), nil)
	return req
}

// testBindState binds state to the processor's session store so the next
// callback can validate against it.
func testBindState(t *testing.T, session SessionStore, state string) {
	t.Helper()
	require.NoError(t, session.Set(context.Background(), DefaultStateKey, state))
}

func testBindNonce(t *testing.T, session SessionStore, nonce string) {
	t.Helper()
	require.NoError(t, session.Set(context.Background(), DefaultNonceKey, nonce))
}

func TestNewProcessor(t *testing.T) {
	t.Parallel()
	t.Run("valid-code-grant", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, err := NewProcessor(testValidConfig(t), NewMemoryStore(), &testIdentityClient{})
		require.NoError(err)
		assert.Nil(p.verifier)
	})
	t.Run("valid-implicit-selects-hs256", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testValidConfig(t)
		c.ResponseType = "id_token"
		p, err := NewProcessor(c, NewMemoryStore(), nil)
		require.NoError(err)
		require.NotNil(p.verifier)
		assert.Equal(HS256, p.verifier.Alg())
	})
	t.Run("public-key-selects-rs256", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testValidConfig(t)
		c.ResponseType = "code id_token"
		pubPEM, _ := TestGenerateRSAKeys(t)
		c.PublicKeyPEM = pubPEM
		p, err := NewProcessor(c, NewMemoryStore(), &testIdentityClient{})
		require.NoError(err)
		require.NotNil(p.verifier)
		assert.Equal(RS256, p.verifier.Alg())
	})
	t.Run("invalid-config", func(t *testing.T) {
		require := require.New(t)
		_, err := NewProcessor(&Config{}, NewMemoryStore(), &testIdentityClient{})
		require.Error(err)
	})
	t.Run("nil-session-store", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := NewProcessor(testValidConfig(t), nil, &testIdentityClient{})
		require.Error(err)
		assert.True(errors.Is(err, ErrNilParameter))
	})
	t.Run("code-grant-requires-client", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, err := NewProcessor(testValidConfig(t), NewMemoryStore(), nil)
		require.Error(err)
		assert.True(errors.Is(err, ErrNilParameter))
	})
}

func TestProcessor_Process_errorParam(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	session := NewMemoryStore()
	p, err := NewProcessor(testValidConfig(t), session, &testIdentityClient{})
	require.NoError(err)

	// the provider error short-circuits everything, even a matching state
	testBindState(t, session, "1234")
	req := testCallbackRequest(t, url.Values{
		"error":             {"access_denied"},
		"error_description": {"user did not consent"},
		"state":             {"1234"},
		"code":              {"abc123"},
	})
	_, err = p.Process(ctx, req)
	require.Error(err)
	assert.True(errors.Is(err, ErrInvalidState))

	// the state wasn't consulted, so it's still bound
	got, err := session.Get(ctx, DefaultStateKey)
	require.NoError(err)
	assert.Equal("1234", got)
}

func TestProcessor_Process_state(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name         string
		sessionState string
		reqState     string
	}{
		{"mismatch", "1234", "4321"},
		{"missing-request-state", "1234", ""},
		{"missing-session-state", "", "1234"},
		// two missing states only arise from misconfiguration and are
		// never treated as a match
		{"both-missing", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			session := NewMemoryStore()
			p, err := NewProcessor(testValidConfig(t), session, &testIdentityClient{})
			require.NoError(err)
			if tt.sessionState != "" {
				testBindState(t, session, tt.sessionState)
			}
			params := url.Values{"code": {"abc123"}}
			if tt.reqState != "" {
				params.Set("state", tt.reqState)
			}
			_, err = p.Process(ctx, testCallbackRequest(t, params))
			require.Error(err)
			assert.True(errors.Is(err, ErrInvalidState))

			// no identity is ever persisted on failure
			got, err := session.Get(ctx, DefaultUserKey)
			require.NoError(err)
			assert.Empty(got)
		})
	}
}

func TestProcessor_Process_singleUseState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	session := NewMemoryStore()
	client := &testIdentityClient{
		exchangeTokens: NewToken(TokenFields{AccessToken: "tokB"}),
		userID:         "auth0|u1",
	}
	p, err := NewProcessor(testValidConfig(t), session, client)
	require.NoError(err)

	testBindState(t, session, "1234")
	req := testCallbackRequest(t, url.Values{"state": {"1234"}, "code": {"abc123"}})

	_, err = p.Process(ctx, req)
	require.NoError(err)

	// replaying the identical callback must fail: the state was consumed
	_, err = p.Process(ctx, req)
	require.Error(err)
	assert.True(errors.Is(err, ErrInvalidState))
}

func TestProcessor_Process_codeGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("end-to-end", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		client := &testIdentityClient{
			exchangeTokens: NewToken(TokenFields{AccessToken: "tokB"}),
			userID:         "auth0|u1",
		}
		cfg := testValidConfig(t)
		p, err := NewProcessor(cfg, session, client)
		require.NoError(err)

		testBindState(t, session, "1234")
		got, err := p.Process(ctx, testCallbackRequest(t, url.Values{"state": {"1234"}, "code": {"abc123"}}))
		require.NoError(err)
		assert.Equal("auth0|u1", got.UserID)
		assert.Equal(AccessToken("tokB"), got.Tokens.AccessToken())
		assert.Equal("abc123", client.gotCode)
		assert.Equal(cfg.RedirectURL, client.gotRedirectURI)
		assert.Equal(AccessToken("tokB"), client.gotAccessToken)

		// success persists the identity to the session
		user, err := session.Get(ctx, DefaultUserKey)
		require.NoError(err)
		assert.Equal("auth0|u1", user)
	})

	t.Run("merge-preserves-candidate-fields", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		client := &testIdentityClient{
			exchangeTokens: NewToken(TokenFields{AccessToken: "tokB"}),
			userID:         "auth0|u1",
		}
		p, err := NewProcessor(testValidConfig(t), session, client)
		require.NoError(err)

		testBindState(t, session, "1234")
		got, err := p.Process(ctx, testCallbackRequest(t, url.Values{
			"state":         {"1234"},
			"code":          {"abc123"},
			"id_token":      {"idFromRequest"},
			"refresh_token": {"refreshFromRequest"},
		}))
		require.NoError(err)
		assert.Equal(AccessToken("tokB"), got.Tokens.AccessToken())
		assert.Equal(IDToken("idFromRequest"), got.Tokens.IDToken())
		assert.Equal(RefreshToken("refreshFromRequest"), got.Tokens.RefreshToken())
	})

	t.Run("exchange-provider-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		cause := &ProviderError{Op: "idp.ExchangeCode", Err: errors.New("boom")}
		p, err := NewProcessor(testValidConfig(t), session, &testIdentityClient{exchangeErr: cause})
		require.NoError(err)

		testBindState(t, session, "1234")
		_, err = p.Process(ctx, testCallbackRequest(t, url.Values{"state": {"1234"}, "code": {"abc123"}}))
		require.Error(err)
		assert.True(errors.Is(err, ErrCodeExchange))

		// the provider error is preserved as the cause
		var pErr *ProviderError
		assert.True(errors.As(err, &pErr))
		assert.Equal(cause, pErr)

		user, err := session.Get(ctx, DefaultUserKey)
		require.NoError(err)
		assert.Empty(user)
	})

	t.Run("userinfo-provider-error-classified-as-exchange", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		client := &testIdentityClient{
			exchangeTokens: NewToken(TokenFields{AccessToken: "tokB"}),
			userIDErr:      &ProviderError{Op: "idp.UserID", Err: errors.New("boom")},
		}
		p, err := NewProcessor(testValidConfig(t), session, client)
		require.NoError(err)

		testBindState(t, session, "1234")
		_, err = p.Process(ctx, testCallbackRequest(t, url.Values{"state": {"1234"}, "code": {"abc123"}}))
		require.Error(err)
		assert.True(errors.Is(err, ErrCodeExchange))
	})

	t.Run("userinfo-without-subject", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		client := &testIdentityClient{
			exchangeTokens: NewToken(TokenFields{AccessToken: "tokB"}),
			userID:         "",
		}
		p, err := NewProcessor(testValidConfig(t), session, client)
		require.NoError(err)

		testBindState(t, session, "1234")
		_, err = p.Process(ctx, testCallbackRequest(t, url.Values{"state": {"1234"}, "code": {"abc123"}}))
		require.Error(err)
		assert.True(errors.Is(err, ErrUserIDResolution))
	})

	t.Run("implicit-callback-not-allowed", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		p, err := NewProcessor(testValidConfig(t), session, &testIdentityClient{})
		require.NoError(err)

		testBindState(t, session, "1234")
		_, err = p.Process(ctx, testCallbackRequest(t, url.Values{
			"state":        {"1234"},
			"access_token": {"tokA"},
			"id_token":     {"idA"},
		}))
		require.Error(err)
		assert.True(errors.Is(err, ErrImplicitGrantNotAllowed))
	})
}

func TestProcessor_Process_implicitGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newImplicitProcessor := func(t *testing.T, session SessionStore) *Processor {
		t.Helper()
		c := testValidConfig(t)
		c.ResponseType = "id_token"
		p, err := NewProcessor(c, session, nil)
		require.NoError(t, err)
		return p
	}
	signToken := func(t *testing.T, subject string, nonce string) string {
		t.Helper()
		claims := TestIDTokenClaims(t, testDomain, "test-client-id", subject, time.Minute)
		return TestSignIDToken(t, HS256, []byte("test-client-secret"), claims, testNonceClaim{Nonce: nonce})
	}

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		p := newImplicitProcessor(t, session)
		testBindState(t, session, "1234")
		testBindNonce(t, session, "test-nonce")

		got, err := p.Process(ctx, testCallbackRequest(t, url.Values{
			"state":        {"1234"},
			"access_token": {"tokA"},
			"id_token":     {signToken(t, "auth0|u1", "test-nonce")},
			"token_type":   {"Bearer"},
			"expires_in":   {"3600"},
		}))
		require.NoError(err)
		assert.Equal("auth0|u1", got.UserID)
		assert.Equal(AccessToken("tokA"), got.Tokens.AccessToken())
		assert.Equal("Bearer", got.Tokens.Type())
		assert.Equal(int64(3600), got.Tokens.ExpiresIn())

		user, err := session.Get(ctx, DefaultUserKey)
		require.NoError(err)
		assert.Equal("auth0|u1", user)
	})

	t.Run("rejected-token-resolves-no-user-id", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		p := newImplicitProcessor(t, session)
		testBindState(t, session, "1234")
		testBindNonce(t, session, "test-nonce")

		_, err := p.Process(ctx, testCallbackRequest(t, url.Values{
			"state":    {"1234"},
			"id_token": {signToken(t, "auth0|u1", "the-wrong-nonce")},
		}))
		require.Error(err)
		assert.True(errors.Is(err, ErrUserIDResolution))

		// the nonce was consumed even though verification failed
		nonce, err := session.Get(ctx, DefaultNonceKey)
		require.NoError(err)
		assert.Empty(nonce)
	})

	t.Run("missing-id-token-is-a-fault", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		p := newImplicitProcessor(t, session)
		testBindState(t, session, "1234")
		testBindNonce(t, session, "test-nonce")

		_, err := p.Process(ctx, testCallbackRequest(t, url.Values{
			"state":        {"1234"},
			"access_token": {"tokA"},
		}))
		require.Error(err)
		assert.True(errors.Is(err, ErrInvalidParameter))
	})

	t.Run("verifier-takes-precedence-over-code", func(t *testing.T) {
		// a processor with a verifier resolves the identity locally even
		// when the callback also carries a code
		assert, require := assert.New(t), require.New(t)
		session := NewMemoryStore()
		c := testValidConfig(t)
		c.ResponseType = "code id_token"
		client := &testIdentityClient{}
		p, err := NewProcessor(c, session, client)
		require.NoError(err)
		testBindState(t, session, "1234")
		testBindNonce(t, session, "test-nonce")

		got, err := p.Process(ctx, testCallbackRequest(t, url.Values{
			"state":    {"1234"},
			"code":     {"abc123"},
			"id_token": {signToken(t, "auth0|u1", "test-nonce")},
		}))
		require.NoError(err)
		assert.Equal("auth0|u1", got.UserID)
		assert.Empty(client.gotCode)
	})
}

func TestProcessor_Process_postForm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	session := NewMemoryStore()
	client := &testIdentityClient{
		exchangeTokens: NewToken(TokenFields{AccessToken: "tokB"}),
		userID:         "auth0|u1",
	}
	p, err := NewProcessor(testValidConfig(t), session, client)
	require.NoError(err)

	testBindState(t, session, "1234")
	form := url.Values{"state": {"1234"}, "code": {"abc123"}}
	req := httptest.NewRequest(http.MethodPost, "https://rp.example.com/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := p.Process(ctx, req)
	require.NoError(err)
	assert.Equal("auth0|u1", got.UserID)
}

func TestProcessor_redirectURL(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	p, err := NewProcessor(testValidConfig(t), NewMemoryStore(), &testIdentityClient{})
	require.NoError(err)

	// the query never leaks into the reported redirect URI
	req := httptest.NewRequest(http.MethodGet, "https://rp.example.com/callback?code=abc123&state=1234", nil)
	assert.Equal("https://rp.example.com/callback", p.redirectURL(req))

	req = httptest.NewRequest(http.MethodGet, "http://rp.example.com/callback", nil)
	assert.Equal("http://rp.example.com/callback", p.redirectURL(req))

	// a terminating proxy's forwarded proto wins
	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal("https://rp.example.com/callback", p.redirectURL(req))
}

func TestProcessor_Process_nilRequest(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	p, err := NewProcessor(testValidConfig(t), NewMemoryStore(), &testIdentityClient{})
	require.NoError(err)
	_, err = p.Process(context.Background(), nil)
	require.Error(err)
	assert.True(errors.Is(err, ErrNilParameter))
}
