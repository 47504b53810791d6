package netclient

import (
	"context"
	"net/http"

	"github.com/researchmesh/fedsession/internal/session"
)

// ExportOptions loads the export configuration.
func (c *Client) ExportOptions(ctx context.Context, st session.State) (session.ExportOptions, error) {
	var out session.ExportOptions
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/resources/export", st.Token.AccessToken, nil, &out)
	return out, err
}

// ImportOptions loads the import configuration.
func (c *Client) ImportOptions(ctx context.Context, st session.State) (session.ImportOptions, error) {
	var out session.ImportOptions
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/resources/import", st.Token.AccessToken, nil, &out)
	return out, err
}

// RootConcepts loads the root of the concept hierarchy.
func (c *Client) RootConcepts(ctx context.Context, st session.State) ([]session.Concept, error) {
	var out []session.Concept
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/resources/concepts/root", st.Token.AccessToken, nil, &out)
	return out, err
}

// DatasetCatalog loads the queryable dataset catalog.
func (c *Client) DatasetCatalog(ctx context.Context, st session.State) ([]session.Dataset, error) {
	var out []session.Dataset
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/resources/datasets", st.Token.AccessToken, nil, &out)
	return out, err
}

// SavedQueries loads the user's stored query definitions.
func (c *Client) SavedQueries(ctx context.Context, st session.State) ([]session.SavedQuery, error) {
	var out []session.SavedQuery
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/resources/queries/saved", st.Token.AccessToken, nil, &out)
	return out, err
}

type extensionConceptsRequest struct {
	Sources       []string `json:"sources"`
	SavedQueryIDs []string `json:"saved_query_ids"`
}

// ExtensionConcepts loads concepts contributed by configured import
// sources, scoped to the user's saved queries.
func (c *Client) ExtensionConcepts(ctx context.Context, st session.State, imp session.ImportOptions, saved []session.SavedQuery) ([]session.Concept, error) {
	if !imp.Enabled || len(imp.Sources) == 0 {
		return nil, nil
	}
	req := extensionConceptsRequest{Sources: imp.Sources}
	for _, q := range saved {
		req.SavedQueryIDs = append(req.SavedQueryIDs, q.ID)
	}
	var out []session.Concept
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/resources/concepts/extensions", st.Token.AccessToken, req, &out)
	return out, err
}
