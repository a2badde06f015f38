package index

import (
	"sort"

	"github.com/dunitrust/dunitrust/crypto"
)

// Snapshot is an immutable, point-in-time view of every index, safe for
// concurrent readers (spec.md §4.5: "Readers observe a consistent view...
// no partial writes are ever visible"). A Snapshot is never mutated after
// construction; Writer publishes a new one on every Apply/RollbackTo.
type Snapshot struct {
	iindex []IIndexRow
	mindex []MIndexRow
	cindex []CIndexRow
	sindex []SIndexRow
	bindex []BIndexRow
}

// IterIIndexByPubkey returns every IINDEX row for pk, ordered by
// written_on (spec.md §4.5).
func (s *Snapshot) IterIIndexByPubkey(pk crypto.PublicKey) []IIndexRow {
	var out []IIndexRow
	for _, r := range s.iindex {
		if r.Pubkey == pk {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WrittenOn < out[j].WrittenOn })
	return out
}

// IterMIndexByPubkey returns every MINDEX row for pk, ordered by
// written_on.
func (s *Snapshot) IterMIndexByPubkey(pk crypto.PublicKey) []MIndexRow {
	var out []MIndexRow
	for _, r := range s.mindex {
		if r.Pubkey == pk {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WrittenOn < out[j].WrittenOn })
	return out
}

// IterCIndexByIssuer returns every CINDEX row issued by pk.
func (s *Snapshot) IterCIndexByIssuer(pk crypto.PublicKey) []CIndexRow {
	var out []CIndexRow
	for _, r := range s.cindex {
		if r.Issuer == pk {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WrittenOn < out[j].WrittenOn })
	return out
}

// IterCIndexByReceiver returns every CINDEX row received by pk.
func (s *Snapshot) IterCIndexByReceiver(pk crypto.PublicKey) []CIndexRow {
	var out []CIndexRow
	for _, r := range s.cindex {
		if r.Receiver == pk {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WrittenOn < out[j].WrittenOn })
	return out
}

// IterSIndexByPubkey returns every unconsumed SINDEX row spendable by pk
// (spec.md §4.5: "filtered to unconsumed").
func (s *Snapshot) IterSIndexByPubkey(pk crypto.PublicKey) []SIndexRow {
	var out []SIndexRow
	for _, r := range s.sindex {
		if r.ConsumedOn == nil && r.Owner == pk {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WrittenOn < out[j].WrittenOn })
	return out
}

// FindSIndexSource looks up a specific source row by its identity (tx_hash
// + output_index, or du_pubkey + du_block), used by validation to resolve
// a Transaction's Input against the currently unconsumed SINDEX set.
func (s *Snapshot) FindSIndexSource(kind SourceKind, txHash crypto.Hash, outputIndex int64, duPubkey crypto.PublicKey, duBlock int64) (SIndexRow, bool) {
	for _, r := range s.sindex {
		if r.Kind != kind {
			continue
		}
		if kind == SourceUD {
			if r.DUPubkey == duPubkey && r.DUBlock == duBlock {
				return r, true
			}
			continue
		}
		if r.TxHash == txHash && r.OutputIndex == outputIndex {
			return r, true
		}
	}
	return SIndexRow{}, false
}

// GetBIndexHead returns the current chain head row. The second return
// value is false if no block has ever been applied.
func (s *Snapshot) GetBIndexHead() (BIndexRow, bool) {
	if len(s.bindex) == 0 {
		return BIndexRow{}, false
	}
	return s.bindex[len(s.bindex)-1], true
}

// AllIIndexRows exposes the full identity set, used by validation to check
// UID uniqueness across the whole currency (spec.md §4.7 rule-level:
// "uniqueness of UID").
func (s *Snapshot) AllIIndexRows() []IIndexRow {
	out := make([]IIndexRow, len(s.iindex))
	copy(out, s.iindex)
	return out
}

// AllCIndexRows exposes the full certification set, used by wot graph
// bootstrap (spec.md §4.4: "rebuilt from CINDEX on startup").
func (s *Snapshot) AllCIndexRows() []CIndexRow {
	out := make([]CIndexRow, len(s.cindex))
	copy(out, s.cindex)
	return out
}
