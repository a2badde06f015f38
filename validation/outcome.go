// Package validation implements the block validation engine (C7): a
// deterministic, six-stage pipeline from a parsed candidate block to one of
// Accepted/Forked/Rejected (spec.md §4.7). The engine is pure with respect
// to the index write side — it returns mutations as a value and never
// calls index.Writer itself; the caller (node's chain-sync module)
// decides whether and how to apply them.
package validation

import (
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/index"
)

// GraphOp is one Web-of-Trust graph mutation a block's acceptance implies
// (spec.md §4.4: "mutated incrementally on block acceptance/rewind"). The
// engine computes these as a value alongside index.Mutations but, like
// them, never applies them itself — the caller replays GraphOp against the
// live wot.Graph only once it has committed the corresponding index
// mutations, keeping the two stores consistent with each other.
type GraphOp struct {
	Kind GraphOpKind
	Node crypto.PublicKey // AddNode, Disable
	From crypto.PublicKey // AddLink, RemoveLink
	To   crypto.PublicKey // AddLink, RemoveLink
}

// GraphOpKind discriminates the shape of a GraphOp.
type GraphOpKind int

const (
	GraphOpAddNode GraphOpKind = iota
	GraphOpDisable
	GraphOpAddLink
	GraphOpRemoveLink
)

// BlockResult bundles one block's index mutations with its graph ops, used
// by Forked to carry a whole side-chain's worth of per-block results.
type BlockResult struct {
	Mutations index.Mutations
	GraphOps  []GraphOp
}

// Outcome is the closed sum spec.md §4.7 describes: Accepted, Forked, or
// Rejected. Go has no sum types, so this is emulated the way the teacher's
// consensus engine emulates a closed error/result space: an unexported
// marker method plus three concrete struct types, switched on via a type
// switch at the call site.
type Outcome interface {
	outcome()
}

// Accepted means the candidate block extends the current head directly.
type Accepted struct {
	Mutations index.Mutations
	GraphOps  []GraphOp
}

// Forked means the candidate's chain is a side chain now strictly longer
// than the main one: the caller must roll the index back to ForkPoint then
// apply each BlockResult in order.
type Forked struct {
	ForkPoint uint32
	Blocks    []BlockResult
}

// Rejected means the block violates a local rule. Stage names the pipeline
// stage that failed (spec.md §4.7: "annotates the reason"); Reason is a
// short human-readable description. Rejected outcomes are final for that
// block hash — no retry (spec.md §4.7 "Failure semantics").
type Rejected struct {
	Stage  string
	Reason string
}

func (Accepted) outcome() {}
func (Forked) outcome()   {}
func (Rejected) outcome() {}

func rejected(stage, reason string) Outcome {
	return Rejected{Stage: stage, Reason: reason}
}
