package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/researchmesh/fedsession/internal/logx"
)

// ResolveFailure records one partner whose identity resolution failed,
// keyed by the partner's configured id.
type ResolveFailure struct {
	PartnerID int
	Err       error
}

type resolveResult struct {
	partnerID int
	identity  NodeIdentity
	err       error
}

// AggregateResponders resolves identities for every configured partner
// without letting a single unreachable node abort the session.
//
// Fan-out is skipped entirely when the attestation is identified, when the
// user's role disallows federated queries, or when no partners are
// configured. This is a policy gate: identified-context sessions must never
// silently broadcast to external nodes.
//
// Otherwise all resolutions run concurrently and the call blocks until
// every one has settled. Failures are collected per partner and omitted
// from the identity set; they never abort sibling resolutions. Successful
// identities get ids in completion order, offset by one to reserve id 0
// for home — ids are unique within a session but do not correlate with
// configuration order across bootstraps.
func AggregateResponders(ctx context.Context, home NodeIdentity, partners []PartnerNode, st State, att Attestation, dir NodeDirectory, dispatch Dispatcher) ([]NodeIdentity, []ResolveFailure) {
	home.ID = 0
	home.IsHome = true
	home.Enabled = true

	if att.Identified || !st.Claims.FederatedAllowed || len(partners) == 0 {
		if len(partners) > 0 {
			logx.Debugf("responder fan-out skipped: identified=%v federated_allowed=%v partners=%d",
				att.Identified, st.Claims.FederatedAllowed, len(partners))
		}
		return []NodeIdentity{home}, nil
	}

	results := make(chan resolveResult, len(partners))
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range partners {
		p := p
		g.Go(func() error {
			identity, err := dir.FetchNodeIdentity(gctx, st, p)
			// Per-node failures stay in the result, not the group: one bad
			// partner must not cancel its siblings.
			results <- resolveResult{partnerID: p.ID, identity: identity, err: err}
			return nil
		})
	}
	g.Wait()
	close(results)

	identities := []NodeIdentity{home}
	var failures []ResolveFailure
	for r := range results {
		if r.err != nil {
			logx.Warnf("partner %d identity resolution failed: %v", r.partnerID, r.err)
			failures = append(failures, ResolveFailure{PartnerID: r.partnerID, Err: r.err})
			if dispatch != nil {
				dispatch.Dispatch(Event{Kind: EventNodeFailure, Payload: ResolveFailure{PartnerID: r.partnerID, Err: r.err}})
			}
			continue
		}
		identity := r.identity
		identity.ID = len(identities)
		identity.IsHome = false
		identity.Enabled = true
		identities = append(identities, identity)
	}
	return identities, failures
}
