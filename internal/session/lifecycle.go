package session

import (
	"context"

	"github.com/researchmesh/fedsession/internal/logx"
)

// AuthUnsecured marks deployments with no real identity provider; logout
// then skips server-side token blacklisting entirely.
const AuthUnsecured = "unsecured"

// Controller handles session upkeep after bootstrap: periodic token
// refresh and terminal logout. The refresh timer lives with the caller,
// not here.
type Controller struct {
	Tokens   TokenService
	Redirect Redirector
	Bus      Dispatcher

	// AuthMechanism is the configured authentication scheme, AuthUnsecured
	// or an identity-provider name.
	AuthMechanism string
	// LogoutRedirectURI is the statically configured fallback used when the
	// server's logout response carries no redirect of its own.
	LogoutRedirectURI string
}

// Refresh obtains a replacement State. Errors propagate to the caller;
// the old state stays in effect if the round-trip fails.
func (c *Controller) Refresh(ctx context.Context, st State) (State, error) {
	next, err := c.Tokens.Refresh(ctx, st)
	if err != nil {
		return State{}, err
	}
	if c.Bus != nil {
		c.Bus.Dispatch(Event{Kind: EventStateSet, Payload: next})
	}
	logx.Debugf("session token refreshed, expires %s", next.Claims.ExpiresAt)
	return next, nil
}

// Logout ends the session. With a real auth mechanism the current token is
// blacklisted server-side first, but a blacklisting failure never blocks
// local cleanup: the user-visible goal is ending the local session. The
// navigation target is the server-provided redirect when present, then the
// configured fallback, then a full client reload so the identity provider
// forces re-authentication.
func (c *Controller) Logout(ctx context.Context, st State) {
	redirect := c.LogoutRedirectURI

	if c.AuthMechanism != AuthUnsecured {
		result, err := c.Tokens.Logout(ctx, st)
		switch {
		case err != nil:
			logx.Warnf("server-side logout failed, continuing local cleanup: %v", err)
		case result != nil && result.RedirectURI != "":
			redirect = result.RedirectURI
		}
	}

	c.Tokens.ClearLocalToken()

	if redirect != "" {
		c.Redirect.Redirect(redirect)
		return
	}
	c.Redirect.Reload()
}
