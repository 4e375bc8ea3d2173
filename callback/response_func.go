package callback

import (
	"net/http"

	"github.com/authkit/redirect"
)

// SuccessResponseFunc is used by Handler to create a http response when the
// callback resolves successfully.
//
// The state parameter is the state that was echoed back by the provider.
// The redirect.Result carries the resolved user id and token record. The
// function should use the http.ResponseWriter to send back whatever content
// (headers, html, JSON, etc) it wishes to the client that originated the
// flow.
type SuccessResponseFunc func(state string, r *redirect.Result, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Handler to create a http response when the
// callback fails.
//
// The state parameter is the state that was echoed back by the provider
// (possibly empty). The error's wrap chain carries the failure class
// (redirect.ErrInvalidState, redirect.ErrCodeExchange,
// redirect.ErrUserIDResolution, redirect.ErrImplicitGrantNotAllowed) and,
// for provider failures, the underlying *redirect.ProviderError cause.
type ErrorResponseFunc func(state string, e error, w http.ResponseWriter, req *http.Request)
