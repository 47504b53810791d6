package netclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/researchmesh/fedsession/internal/logx"
	"github.com/researchmesh/fedsession/internal/session"
)

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Claims      struct {
		Subject   string `json:"sub"`
		Nonce     string `json:"nonce"`
		Federated bool   `json:"federated"`
	} `json:"claims"`
}

func (r tokenResponse) state() session.State {
	return session.State{
		Token: oauth2.Token{
			AccessToken: r.AccessToken,
			TokenType:   r.TokenType,
			Expiry:      r.ExpiresAt,
		},
		Claims: session.Claims{
			Subject:          r.Claims.Subject,
			AccessNonce:      r.Claims.Nonce,
			FederatedAllowed: r.Claims.Federated,
			ExpiresAt:        r.ExpiresAt,
		},
	}
}

// SubmitAttestation exchanges the attestation for a session token.
func (c *Client) SubmitAttestation(ctx context.Context, att session.Attestation) (session.State, error) {
	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/session/attest", "", att, &resp); err != nil {
		return session.State{}, err
	}
	if resp.AccessToken == "" {
		return session.State{}, fmt.Errorf("attest response missing access token")
	}
	st := resp.state()
	c.cacheState(st)
	return st, nil
}

// Refresh requests a replacement token using the current state.
func (c *Client) Refresh(ctx context.Context, st session.State) (session.State, error) {
	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/session/refresh", st.Token.AccessToken, nil, &resp); err != nil {
		return session.State{}, err
	}
	next := resp.state()
	c.cacheState(next)
	return next, nil
}

// Logout asks the hub to blacklist the current token. A nil result means
// the hub offered no post-logout redirect.
func (c *Client) Logout(ctx context.Context, st session.State) (*session.LogoutResult, error) {
	var result session.LogoutResult
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/session/logout", st.Token.AccessToken, nil, &result); err != nil {
		return nil, err
	}
	if result.RedirectURI == "" {
		return nil, nil
	}
	return &result, nil
}

// ClearLocalToken removes the cached token; failure to remove an absent
// cache is not an error.
func (c *Client) ClearLocalToken() {
	if c.tokenPath == "" {
		return
	}
	if err := os.Remove(c.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warnf("remove cached token: %v", err)
	}
}

func (c *Client) cacheState(st session.State) {
	if c.tokenPath == "" {
		return
	}
	raw, err := json.Marshal(st)
	if err != nil {
		logx.Warnf("marshal cached token: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0o700); err != nil {
		logx.Warnf("create token cache dir: %v", err)
		return
	}
	if err := os.WriteFile(c.tokenPath, raw, 0o600); err != nil {
		logx.Warnf("write cached token: %v", err)
	}
}

// LoadState reads the cached session state from disk.
func (c *Client) LoadState() (session.State, error) {
	var st session.State
	if c.tokenPath == "" {
		return st, fmt.Errorf("token caching disabled")
	}
	raw, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return st, fmt.Errorf("read cached token: %w", err)
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return st, fmt.Errorf("parse cached token: %w", err)
	}
	return st, nil
}
