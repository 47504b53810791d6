package netclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/researchmesh/fedsession/internal/session"
)

type homeResponse struct {
	Identity session.NodeIdentity  `json:"identity"`
	Partners []session.PartnerNode `json:"partners"`
}

// FetchHomeIdentity returns the home node's identity and its configured
// partner descriptors.
func (c *Client) FetchHomeIdentity(ctx context.Context, st session.State) (session.NodeIdentity, []session.PartnerNode, error) {
	var resp homeResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/network/home", st.Token.AccessToken, nil, &resp); err != nil {
		return session.NodeIdentity{}, nil, err
	}
	if resp.Identity.Address == "" {
		resp.Identity.Address = c.baseURL
	}
	return resp.Identity, resp.Partners, nil
}

// FetchNodeIdentity asks a partner node directly for its identity record.
// Failures come back tagged with the partner's configured id so the
// aggregator can isolate them.
func (c *Client) FetchNodeIdentity(ctx context.Context, st session.State, partner session.PartnerNode) (session.NodeIdentity, error) {
	addr := normalizeNodeAddress(partner.Address)
	if addr == "" {
		return session.NodeIdentity{}, &session.NodeError{
			PartnerID: partner.ID,
			Err:       fmt.Errorf("partner has no address"),
		}
	}

	var identity session.NodeIdentity
	if err := c.doJSON(ctx, http.MethodGet, addr+"/v1/network/identity", st.Token.AccessToken, nil, &identity); err != nil {
		return session.NodeIdentity{}, &session.NodeError{PartnerID: partner.ID, Err: err}
	}
	identity.Address = addr
	return identity, nil
}
