package redirect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-hclog"
)

// Processor turns an inbound authorization redirect into a verified identity
// and a canonical Token record, or a typed failure. It enforces the
// single-use state against CSRF/replay, then resolves the grant either by
// exchanging the authorization code with the identity provider (code grant)
// or by locally verifying the signed id_token's nonce, issuer, audience and
// signature (implicit grant).
//
// A Processor is immutable after construction and safe for concurrent use;
// per-user isolation comes from the session-scoped SessionStore each request
// carries.
type Processor struct {
	config   *Config
	store    *StateStore
	client   IdentityClient
	verifier *Verifier
	issuer   string
	logger   hclog.Logger
}

// NewProcessor creates a Processor for the given config, backed by the
// caller's session store and identity provider client.
//
// The verification strategy is selected once, here: RS256 when
// Config.PublicKeyPEM is set, HS256 with the client secret when the response
// type can carry an id_token, and none for a pure "code" response type. A
// processor with no verifier requires a non-nil client, since resolving a
// code grant is its only way to obtain an identity.
//
// Supported options: WithLogger, WithStateKey, WithNonceKey, WithUserKey,
// WithNow.
func NewProcessor(c *Config, store SessionStore, client IdentityClient, opt ...Option) (*Processor, error) {
	const op = "redirect.NewProcessor"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	}
	stateStore, err := NewStateStore(store, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	issuer, err := Issuer(c.Domain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var verifier *Verifier
	switch {
	case c.PublicKeyPEM != "":
		verifier, err = NewRS256Verifier(c.Domain, c.ClientID, c.PublicKeyPEM, opt...)
	case c.canCarryIDToken():
		verifier, err = NewHS256Verifier(c.Domain, c.ClientID, c.ClientSecret, opt...)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if verifier == nil && client == nil {
		return nil, fmt.Errorf("%s: identity client is nil and no verifier is configured: %w", op, ErrNilParameter)
	}

	opts := getProcessorOpts(opt...)
	return &Processor{
		config:   c,
		store:    stateStore,
		client:   client,
		verifier: verifier,
		issuer:   issuer,
		logger:   opts.withLogger,
	}, nil
}

// Result is the outcome of successfully processing a callback.
type Result struct {
	// UserID is the provider-issued subject identifier.
	UserID string

	// Tokens is the canonical token record for the login. For a code grant
	// it merges the exchanged tokens over any token parameters the redirect
	// carried; for an implicit grant it holds the redirect's token
	// parameters.
	Tokens *Token
}

// Process validates the authorization redirect req and resolves its grant.
// Parameters are read with req.FormValue, so both GET query and POST form
// callbacks are supported.
//
// The session-bound state (and nonce, for implicit processors) is consumed
// whether or not processing succeeds, so resubmitting the same callback
// always fails. On success the resolved user id is persisted to the session
// before returning; on failure nothing is persisted.
//
// Failures are classified by the sentinel in the returned error's wrap
// chain: ErrInvalidState (provider error response, or missing/mismatched
// state), ErrImplicitGrantNotAllowed, ErrCodeExchange (provider failure,
// cause preserved) and ErrUserIDResolution (rejected id_token or user-info
// without a subject).
func (p *Processor) Process(ctx context.Context, req *http.Request) (*Result, error) {
	const op = "Processor.Process"
	if req == nil {
		return nil, fmt.Errorf("%s: http request is nil: %w", op, ErrNilParameter)
	}

	if provErr := req.FormValue("error"); provErr != "" {
		p.logger.Error("provider returned an error response", "error", provErr, "description", req.FormValue("error_description"))
		return nil, fmt.Errorf("%s: provider returned %q: %w", op, provErr, ErrInvalidState)
	}

	sessionState, err := p.store.TakeState(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reqState := req.FormValue("state")
	if reqState == "" || reqState != sessionState {
		p.logger.Debug("state mismatch", "have_session_state", sessionState != "")
		return nil, fmt.Errorf("%s: request state doesn't match the session state: %w", op, ErrInvalidState)
	}

	candidate := NewToken(TokenFields{
		AccessToken:  req.FormValue("access_token"),
		IDToken:      req.FormValue("id_token"),
		RefreshToken: req.FormValue("refresh_token"),
		TokenType:    req.FormValue("token_type"),
		ExpiresIn:    parseExpiresIn(req.FormValue("expires_in")),
	})

	var userID string
	tokens := candidate
	reqCode := req.FormValue("code")
	switch {
	case p.verifier == nil && reqCode == "":
		return nil, fmt.Errorf("%s: callback has no code and this processor only handles the code grant: %w", op, ErrImplicitGrantNotAllowed)

	case p.verifier != nil:
		// The nonce is consumed no matter how verification turns out.
		nonce, err := p.store.TakeNonce(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		userID, err = p.verifier.Verify(candidate.IDToken(), nonce)
		if err != nil {
			if !errors.Is(err, ErrTokenVerification) {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			p.logger.Debug("id_token rejected", "reason", err.Error())
			userID = ""
		}

	default:
		exchanged, err := p.client.ExchangeCode(ctx, reqCode, p.redirectURL(req))
		if err != nil {
			p.logger.Error("code exchange failed", "error", err.Error())
			return nil, fmt.Errorf("%s: %w: %w", op, ErrCodeExchange, err)
		}
		tokens = candidate.Merge(exchanged)
		userID, err = p.client.UserID(ctx, tokens.AccessToken())
		if err != nil {
			p.logger.Error("user info fetch failed", "error", err.Error())
			return nil, fmt.Errorf("%s: %w: %w", op, ErrCodeExchange, err)
		}
	}

	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUserIDResolution)
	}
	if err := p.store.SetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.logger.Debug("callback resolved", "user_id", userID)
	return &Result{UserID: userID, Tokens: tokens}, nil
}

// redirectURL is the redirect URI reported to the provider during the code
// exchange: the current request's URL without its query, since the provider
// redirected the browser to the same URL it must now be told about.
func (p *Processor) redirectURL(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + req.Host + req.URL.Path
}

func parseExpiresIn(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// processorOptions is the set of available options for Processor functions
type processorOptions struct {
	withLogger hclog.Logger
}

// processorDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func processorDefaults() processorOptions {
	return processorOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getProcessorOpts gets the processor defaults and applies the opt overrides
// passed in
func getProcessorOpts(opt ...Option) processorOptions {
	opts := processorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
