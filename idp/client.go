// Package idp provides a reference redirect.IdentityClient backed by the
// identity provider's HTTP endpoints: the token endpoint
// (https://{domain}/oauth/token) for code exchange and the user-info
// endpoint (https://{domain}/userinfo) for subject resolution. The actual
// token-exchange wire protocol is delegated to golang.org/x/oauth2.
package idp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"

	"github.com/authkit/redirect"
)

// Client implements redirect.IdentityClient. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	clientID     string
	clientSecret redirect.ClientSecret
	issuer       string
	client       *http.Client
}

// ensure that Client implements the IdentityClient interface
var _ redirect.IdentityClient = (*Client)(nil)

// NewClient creates a Client for the provider at domain (see
// redirect.Issuer for how the domain is normalized). Supported options:
// WithProviderCA, WithHTTPClient.
func NewClient(domain string, clientID string, clientSecret redirect.ClientSecret, opt ...redirect.Option) (*Client, error) {
	const op = "idp.NewClient"
	issuer, err := redirect.Issuer(domain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if clientID == "" {
		return nil, fmt.Errorf("%s: client id is empty: %w", op, redirect.ErrInvalidParameter)
	}
	if clientSecret == "" {
		return nil, fmt.Errorf("%s: client secret is empty: %w", op, redirect.ErrInvalidParameter)
	}
	opts := getClientOpts(opt...)

	httpClient := opts.withHTTPClient
	if httpClient == nil {
		httpClient, err = newHTTPClient(opts.withProviderCA)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		issuer:       issuer,
		client:       httpClient,
	}, nil
}

// ExchangeCode implements redirect.IdentityClient.ExchangeCode against the
// provider's token endpoint. Provider and transport failures are returned
// as a *redirect.ProviderError with the underlying error preserved.
func (c *Client) ExchangeCode(ctx context.Context, code string, redirectURI string) (*redirect.Token, error) {
	const op = "idp.ExchangeCode"
	if code == "" {
		return nil, fmt.Errorf("%s: code is empty: %w", op, redirect.ErrInvalidParameter)
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("%s: redirect URI is empty: %w", op, redirect.ErrInvalidParameter)
	}

	oauth2Config := oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: string(c.clientSecret),
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.issuer + "oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	tok, err := oauth2Config.Exchange(c.httpClientContext(ctx), code)
	if err != nil {
		return nil, &redirect.ProviderError{Op: op, Err: err}
	}

	idToken, _ := tok.Extra("id_token").(string)
	var expiresIn int64
	if v, ok := tok.Extra("expires_in").(float64); ok {
		expiresIn = int64(v)
	}
	return redirect.NewToken(redirect.TokenFields{
		AccessToken:  tok.AccessToken,
		IDToken:      idToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
	}), nil
}

// UserID implements redirect.IdentityClient.UserID against the provider's
// user-info endpoint. A well-formed response without a "sub" claim returns
// ("", nil); provider and transport failures are returned as a
// *redirect.ProviderError.
func (c *Client) UserID(ctx context.Context, accessToken redirect.AccessToken) (string, error) {
	const op = "idp.UserID"
	if accessToken == "" {
		return "", fmt.Errorf("%s: access token is empty: %w", op, redirect.ErrInvalidParameter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.issuer+"userinfo", nil)
	if err != nil {
		return "", &redirect.ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+string(accessToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &redirect.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &redirect.ProviderError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &redirect.ProviderError{Op: op, Err: fmt.Errorf("user info endpoint returned %d: %s", resp.StatusCode, body)}
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return "", &redirect.ProviderError{Op: op, Err: err}
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

// httpClientContext carries the client's *http.Client using the context key
// shared by the golang.org/x/oauth2 package.
func (c *Client) httpClientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.client)
}

// newHTTPClient creates an http client which will trust the optional CA
// certificate PEM if provided, otherwise it uses the installed system CA
// chain.
func newHTTPClient(caPEM string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()
	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, fmt.Errorf("could not parse CA PEM value: %w", redirect.ErrInvalidKeyMaterial)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}
	return &http.Client{Transport: tr}, nil
}

// clientOptions is the set of available options for Client functions
type clientOptions struct {
	withProviderCA string
	withHTTPClient *http.Client
}

// clientDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func clientDefaults() clientOptions {
	return clientOptions{}
}

// getClientOpts gets the client defaults and applies the opt overrides
// passed in
func getClientOpts(opt ...redirect.Option) clientOptions {
	opts := clientDefaults()
	redirect.ApplyOpts(&opts, opt...)
	return opts
}

// WithProviderCA provides an optional CA certificate PEM to trust when
// calling the provider, instead of the system CA chain.
func WithProviderCA(caPEM string) redirect.Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withProviderCA = caPEM
		}
	}
}

// WithHTTPClient provides an optional, fully-formed http client to use for
// provider calls, overriding WithProviderCA.
func WithHTTPClient(client *http.Client) redirect.Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withHTTPClient = client
		}
	}
}
