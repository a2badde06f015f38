package validation

import (
	"sort"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/index"
	"github.com/dunitrust/dunitrust/wot"
)

// Registry bridges the pubkey-addressed world of DUBP documents and the
// opaque-NodeId world of wot.Graph (spec.md §4.4: "NodeIds are opaque
// stable integers"). It owns one Graph and the bijection between the
// pubkeys that have ever held an Identity and their assigned NodeId.
// Registry is not safe for concurrent use; callers serialize access the
// same way index.Writer serializes apply/rollback.
type Registry struct {
	Graph *wot.Graph
	ids   map[crypto.PublicKey]wot.NodeId
}

// NewRegistry returns an empty Registry over a fresh graph.
func NewRegistry() *Registry {
	return &Registry{Graph: wot.NewGraph(), ids: make(map[crypto.PublicKey]wot.NodeId)}
}

// NodeFor looks up the NodeId assigned to pk, if any.
func (r *Registry) NodeFor(pk crypto.PublicKey) (wot.NodeId, bool) {
	id, ok := r.ids[pk]
	return id, ok
}

// Register assigns pk a NodeId if it doesn't have one yet, adding it to the
// graph, and returns the (possibly pre-existing) NodeId.
func (r *Registry) Register(pk crypto.PublicKey) wot.NodeId {
	if id, ok := r.ids[pk]; ok {
		return id
	}
	id := r.Graph.AddNode()
	r.ids[pk] = id
	return id
}

// Apply replays one GraphOp against the live graph, registering new nodes
// as needed. Called by the node-level caller once it has durably committed
// the corresponding index.Mutations (spec.md §4.4: "mutated incrementally
// on block acceptance/rewind").
func (r *Registry) Apply(op GraphOp) error {
	switch op.Kind {
	case GraphOpAddNode:
		r.Register(op.Node)
		return nil
	case GraphOpDisable:
		id, ok := r.ids[op.Node]
		if !ok {
			return nil
		}
		return r.Graph.Disable(id)
	case GraphOpAddLink:
		from, to := r.Register(op.From), r.Register(op.To)
		return r.Graph.AddLink(from, to)
	case GraphOpRemoveLink:
		from, ok1 := r.ids[op.From]
		to, ok2 := r.ids[op.To]
		if !ok1 || !ok2 {
			return nil
		}
		return r.Graph.RemoveLink(from, to)
	}
	return nil
}

// Snapshot returns a Registry holding a copy of this one's pubkey<->NodeId
// bijection and a copy-on-write snapshot of the graph (wot.Graph.Snapshot),
// so speculative evaluation (fork candidates) never mutates the live
// registry: Register/Apply calls on the returned Registry change only its
// own id map and graph.
func (r *Registry) Snapshot() *Registry {
	ids := make(map[crypto.PublicKey]wot.NodeId, len(r.ids))
	for k, v := range r.ids {
		ids[k] = v
	}
	return &Registry{Graph: r.Graph.Snapshot(), ids: ids}
}

// BootstrapRegistry rebuilds a Registry from a snapshot's full CINDEX
// (spec.md §4.4: "rebuilt from CINDEX on startup"). NodeIds are assigned in
// a deterministic order — ascending Base58 encoding of each distinct
// pubkey appearing as issuer or receiver — so independently-restarted
// processes agree on the assignment without persisting it.
func BootstrapRegistry(snap *index.Snapshot) *Registry {
	r := NewRegistry()
	rows := snap.AllCIndexRows()

	seen := make(map[crypto.PublicKey]bool)
	var pubkeys []crypto.PublicKey
	for _, row := range rows {
		for _, pk := range [2]crypto.PublicKey{row.Issuer, row.Receiver} {
			if !seen[pk] {
				seen[pk] = true
				pubkeys = append(pubkeys, pk)
			}
		}
	}
	sort.Slice(pubkeys, func(i, j int) bool {
		return crypto.Base58Encode(pubkeys[i]) < crypto.Base58Encode(pubkeys[j])
	})
	for _, pk := range pubkeys {
		r.Register(pk)
	}
	for _, row := range rows {
		if row.ExpiredOn != 0 {
			continue
		}
		from, _ := r.NodeFor(row.Issuer)
		to, _ := r.NodeFor(row.Receiver)
		_ = r.Graph.AddLink(from, to)
	}
	return r
}
