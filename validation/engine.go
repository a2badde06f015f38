package validation

import (
	"fmt"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/dubp"
	"github.com/dunitrust/dunitrust/index"
	"github.com/dunitrust/dunitrust/params"
)

// MaxTimeDrift bounds how far a block's declared Time may exceed the
// computed medianTime (spec.md §4.7 stage 3), expressed in seconds.
const MaxTimeDrift = 3600

// Engine runs the deterministic six-stage pipeline of spec.md §4.7 over one
// candidate block at a time. It holds no mutable chain state itself; every
// stage takes the parent block and the relevant index/graph snapshots as
// arguments, so an Engine value is safe to reuse across blocks and
// candidate side chains alike.
type Engine struct {
	Currency params.Currency
}

// NewEngine returns an Engine bound to one currency's protocol parameters.
func NewEngine(cur params.Currency) *Engine {
	return &Engine{Currency: cur}
}

// Bootstrap accepts a genesis block without a parent (spec.md doesn't
// specify how the chain acquires its first state; this expansion's
// supplemented genesis entry point, see SPEC_FULL.md §3). It still runs the
// syntactic and document-level stages — a malformed genesis is still a bug
// worth catching — but skips the structural/temporal stages that assume a
// parent.
func (e *Engine) Bootstrap(genesis *dubp.Block) (Outcome, error) {
	if genesis.Number != 0 {
		return rejected("bootstrap", "genesis block must be number 0"), nil
	}
	if err := stageSyntactic(genesis); err != nil {
		return rejected("syntactic", err.Error()), nil
	}
	if err := stageDocument(genesis); err != nil {
		return rejected("document", err.Error()), nil
	}
	mutations, graphOps, err := e.evaluateRules(&index.Snapshot{}, NewRegistry(), nil, genesis)
	if err != nil {
		return rejected("rule", err.Error()), nil
	}
	return Accepted{Mutations: mutations, GraphOps: graphOps}, nil
}

// Validate runs the full pipeline for a candidate that directly extends
// parent, the current chain head recorded in snap. reg bridges pubkeys to
// the live Web-of-Trust graph; Validate only reads it (via Distance/
// Sentries), it never mutates it — the caller applies the returned
// GraphOps to reg only once it has durably committed Mutations.
// recentTimes are the Time fields of the last dtDiffEval accepted blocks,
// oldest first, used to recompute medianTime.
func (e *Engine) Validate(snap *index.Snapshot, reg *Registry, parent, candidate *dubp.Block, recentTimes []int64) (Outcome, error) {
	if err := stageSyntactic(candidate); err != nil {
		return rejected("syntactic", err.Error()), nil
	}
	powMinRequired := parent.PowMin // simplest admissible difficulty-retarget policy: the parent's PowMin carries forward
	if err := stageStructural(parent, candidate, powMinRequired); err != nil {
		return rejected("structural", err.Error()), nil
	}
	medianTime := computeMedianTime(recentTimes)
	if err := stageTemporal(medianTime, candidate); err != nil {
		return rejected("temporal", err.Error()), nil
	}
	if err := stageDocument(candidate); err != nil {
		return rejected("document", err.Error()), nil
	}
	mutations, graphOps, err := e.evaluateRules(snap, reg, parent, candidate)
	if err != nil {
		return rejected("rule", err.Error()), nil
	}
	return Accepted{Mutations: mutations, GraphOps: graphOps}, nil
}

// ValidateFork runs the full pipeline over every block of a candidate side
// chain, in order, against a scratch registry seeded from reg (spec.md
// §4.7: "rollback to fork_point then apply each side-chain block"). It is
// the caller's responsibility to have already established that
// forkParent.Number+len(sideChain) exceeds the current main-chain head
// length before calling; ValidateFork itself only checks each block's own
// validity and chains mutations across the branch.
func (e *Engine) ValidateFork(snap *index.Snapshot, reg *Registry, forkParent *dubp.Block, sideChain []*dubp.Block, recentTimesAt func(blockNumber uint32) []int64) (Outcome, error) {
	scratch := reg.Snapshot()
	parent := forkParent
	var results []BlockResult
	for _, block := range sideChain {
		outcome, err := e.Validate(snap, scratch, parent, block, recentTimesAt(block.Number))
		if err != nil {
			return nil, err
		}
		accepted, ok := outcome.(Accepted)
		if !ok {
			return outcome, nil
		}
		for _, op := range accepted.GraphOps {
			if err := scratch.Apply(op); err != nil {
				return nil, err
			}
		}
		results = append(results, BlockResult{Mutations: accepted.Mutations, GraphOps: accepted.GraphOps})
		parent = block
	}
	return Forked{ForkPoint: forkParent.Number, Blocks: results}, nil
}

func stageSyntactic(block *dubp.Block) error {
	if block.ComputeInnerHash() != block.InnerHash {
		return fmt.Errorf("inner hash mismatch")
	}
	return nil
}

func stageStructural(parent, candidate *dubp.Block, powMinRequired int) error {
	if candidate.Number != parent.Number+1 {
		return fmt.Errorf("block number %d does not follow parent %d", candidate.Number, parent.Number)
	}
	if candidate.PreviousHash != parent.Hash() {
		return fmt.Errorf("previous_hash does not match parent hash")
	}
	if err := dubp.Verify(candidate); err != nil {
		return fmt.Errorf("block signature: %w", err)
	}
	if countLeadingZeroHexDigits(candidate.Hash()) < powMinRequired {
		return fmt.Errorf("pow below required")
	}
	return nil
}

func countLeadingZeroHexDigits(h crypto.Hash) int {
	hex := h.HexUpper()
	n := 0
	for _, c := range hex {
		if c != '0' {
			break
		}
		n++
	}
	return n
}

func computeMedianTime(recentTimes []int64) int64 {
	if len(recentTimes) == 0 {
		return 0
	}
	sorted := append([]int64{}, recentTimes...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}

func stageTemporal(medianTime int64, candidate *dubp.Block) error {
	if candidate.Time < medianTime {
		return fmt.Errorf("time %d precedes medianTime %d", candidate.Time, medianTime)
	}
	if candidate.Time > medianTime+MaxTimeDrift {
		return fmt.Errorf("time %d exceeds medianTime+maxDrift (%d)", candidate.Time, medianTime+MaxTimeDrift)
	}
	return nil
}

func stageDocument(block *dubp.Block) error {
	for _, d := range block.Identities {
		if err := dubp.Verify(d); err != nil {
			return fmt.Errorf("identity %s: %w", d.UniqueID, err)
		}
	}
	for _, d := range block.Memberships {
		if err := dubp.Verify(d); err != nil {
			return fmt.Errorf("membership %s: %w", d.UserID, err)
		}
	}
	for _, d := range block.Certifications {
		if err := dubp.Verify(d); err != nil {
			return fmt.Errorf("certification: %w", err)
		}
	}
	for _, d := range block.Revocations {
		if err := dubp.Verify(d); err != nil {
			return fmt.Errorf("revocation: %w", err)
		}
	}
	for _, d := range block.Transactions {
		if err := dubp.Verify(d); err != nil {
			return fmt.Errorf("transaction: %w", err)
		}
	}
	return nil
}
