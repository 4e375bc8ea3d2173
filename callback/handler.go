// Package callback provides http.HandlerFunc glue for serving a
// redirect.Processor behind the relying party's callback endpoint. The
// handler reads the provider's redirect (GET query or POST form), hands it
// to the processor, and delegates the response to caller-supplied success
// and error response funcs.
package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/authkit/redirect"
)

// Handler creates a callback handler which processes an authorization
// redirect with p. The SuccessResponseFunc is used to create a response
// when the callback resolves; the ErrorResponseFunc when it fails.
func Handler(ctx context.Context, p *redirect.Processor, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Handler"
	if p == nil {
		return nil, fmt.Errorf("%s: processor is nil: %w", op, redirect.ErrNilParameter)
	}
	if sFn == nil {
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, redirect.ErrNilParameter)
	}
	if eFn == nil {
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, redirect.ErrNilParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found.
		reqState := req.FormValue("state")

		result, err := p.Process(ctx, req)
		if err != nil {
			eFn(reqState, err, w, req)
			return
		}
		sFn(reqState, result, w, req)
	}, nil
}
