package redirect

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/authkit/redirect/internal/strutils"
)

// AuthURL generates the URL the caller should redirect the user's browser to
// in order to kick off the flow with the identity provider. It issues a new
// single-use state, and a nonce when the configured response type can carry
// an id_token, binding both to the session for the returning callback to
// validate. The URL embeds client_id, redirect_uri, response_type, scope,
// state and (when issued) nonce.
func (p *Processor) AuthURL(ctx context.Context) (string, error) {
	const op = "Processor.AuthURL"
	state, err := p.store.IssueState(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	authCodeOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", p.responseType()),
	}
	if p.config.canCarryIDToken() {
		nonce, err := p.store.IssueNonce(ctx)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("nonce", nonce))
	}

	// The required "openid" scope is always requested.
	scopes := strutils.RemoveDuplicatesStable(append([]string{"openid"}, p.config.Scopes...), false)
	oauth2Config := oauth2.Config{
		ClientID:    p.config.ClientID,
		RedirectURL: p.config.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL: p.issuer + "authorize",
		},
		Scopes: scopes,
	}
	return oauth2Config.AuthCodeURL(state, authCodeOpts...), nil
}

func (p *Processor) responseType() string {
	return strings.Join(p.config.responseTypes(), " ")
}
