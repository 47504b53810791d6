package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Attestation is the user-asserted identity claim submitted to begin a
// session. Immutable once submitted.
type Attestation struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Project  string `json:"project"`
	// Identified marks a non-anonymized study context. Identified sessions
	// must never broadcast queries to partner nodes.
	Identified bool `json:"identified"`
}

// Claims are the decoded fields of a session token.
type Claims struct {
	Subject          string    `json:"sub"`
	AccessNonce      string    `json:"nonce"`
	FederatedAllowed bool      `json:"federated"`
	ExpiresAt        time.Time `json:"exp"`
}

// State is the session context: the opaque token plus its decoded claims.
// A State is replaced wholesale on refresh, never mutated in place.
type State struct {
	Token  oauth2.Token
	Claims Claims
}

// Valid reports whether the state holds a usable, unexpired token.
func (s State) Valid() bool {
	return s.Token.AccessToken != "" && s.Token.Valid()
}

// NodeIdentity is a node's public identity record. The home node always
// occupies ID 0; responders get ids 1..N as fan-out tasks complete.
type NodeIdentity struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
	Name    string `json:"name"`
	IsHome  bool   `json:"is_home"`
	Enabled bool   `json:"enabled"`
}

// PartnerNode describes a configured partner before identity resolution.
type PartnerNode struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

// LoadStatus is the user-visible bootstrap progress. Exactly one instance
// is live at a time; each stage overwrites it.
type LoadStatus struct {
	Label   string `json:"label"`
	Percent int    `json:"percent"`
}

// ExportOptions configures what a researcher may export from result sets.
type ExportOptions struct {
	Formats  []string `json:"formats"`
	RowLimit int      `json:"row_limit"`
}

// ImportOptions configures external sources queries may draw concepts from.
type ImportOptions struct {
	Sources []string `json:"sources"`
	Enabled bool     `json:"enabled"`
}

// Concept is a node in the query ontology.
type Concept struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	// Source is empty for hub-native concepts and names the contributing
	// extension otherwise.
	Source string `json:"source,omitempty"`
}

// Dataset is an entry in the queryable dataset catalog.
type Dataset struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Terms []string `json:"terms"`
}

// SavedQuery is a previously stored query definition.
type SavedQuery struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// Panel is one criteria group of a query under construction.
type Panel struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// PanelFilter is a constraint applied to a single panel.
type PanelFilter struct {
	Panel int    `json:"panel"`
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// Snapshot is a persisted record of a past session's in-progress query
// state. Read-only input to the resume flow.
type Snapshot struct {
	Query   string        `json:"query"`
	Panels  []Panel       `json:"panels"`
	Filters []PanelFilter `json:"filters"`
	SavedAt time.Time     `json:"saved_at"`
}

// Session is the fully bootstrapped session: token state, the resolved
// node set, and every loaded resource. Stages produce a new Session value
// rather than mutating shared state.
type Session struct {
	Att        Attestation
	State      State
	Home       NodeIdentity
	Partners   []PartnerNode
	Responders []NodeIdentity
	Failures   []ResolveFailure

	Export       ExportOptions
	Import       ImportOptions
	Concepts     []Concept
	Datasets     []Dataset
	SavedQueries []SavedQuery

	// Active query state, populated when a previous session is resumed.
	Query   string
	Panels  []Panel
	Filters []PanelFilter
}

// NodeError tags a resolution failure with the configured id of the node
// that produced it. Per-node failures are recoverable; the aggregator, not
// the resolver, decides what to do with them.
type NodeError struct {
	PartnerID int
	Err       error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %d: %v", e.PartnerID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// LogoutResult is the server's answer to a logout request.
type LogoutResult struct {
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// TokenService issues, refreshes and revokes session tokens.
type TokenService interface {
	SubmitAttestation(ctx context.Context, att Attestation) (State, error)
	Refresh(ctx context.Context, st State) (State, error)
	// Logout blacklists the current token server-side. A nil result means
	// the server offered no redirect.
	Logout(ctx context.Context, st State) (*LogoutResult, error)
	ClearLocalToken()
}

// NodeDirectory resolves node identities over the network.
type NodeDirectory interface {
	FetchHomeIdentity(ctx context.Context, st State) (NodeIdentity, []PartnerNode, error)
	FetchNodeIdentity(ctx context.Context, st State, partner PartnerNode) (NodeIdentity, error)
}

// ResourceLoader fetches the session's dependent resources, each an
// independent request keyed off the current state.
type ResourceLoader interface {
	ExportOptions(ctx context.Context, st State) (ExportOptions, error)
	ImportOptions(ctx context.Context, st State) (ImportOptions, error)
	RootConcepts(ctx context.Context, st State) ([]Concept, error)
	DatasetCatalog(ctx context.Context, st State) ([]Dataset, error)
	SavedQueries(ctx context.Context, st State) ([]SavedQuery, error)
	ExtensionConcepts(ctx context.Context, st State, imp ImportOptions, saved []SavedQuery) ([]Concept, error)
}

// SearchEngine indexes catalog and concept terms for the session.
type SearchEngine interface {
	BuildCatalogIndex(datasets []Dataset) error
	Init(concepts []Concept, datasets []Dataset, saved []SavedQuery) error
}

// SnapshotStore looks up the most recently saved previous session.
type SnapshotStore interface {
	// Latest returns nil with no error when no snapshot exists.
	Latest(ctx context.Context) (*Snapshot, error)
}

// Confirmer presents a binary choice to the user.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Redirector performs the post-logout navigation effect.
type Redirector interface {
	Redirect(uri string)
	Reload()
}
