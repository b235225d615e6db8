// Package noop provides a no-op authenticator that accepts all requests.
// Used for development and as a default voter in the auth chain.
package noop

import (
	"context"
	"net/http"

	"github.com/visto-dev/visto/pkg/auth"
)

// Authenticator always returns Grant with a default anonymous identity.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	return auth.Result{
		Decision: auth.Grant,
		Identity: &auth.Identity{Subject: "anonymous"},
	}
}
