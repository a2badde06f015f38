// Package index implements the persistent, snapshot-readable projection of
// the chain — IINDEX, MINDEX, CINDEX, SINDEX, BINDEX — with strict
// read/write separation (spec.md §3 "Indices", §4.5 C5, §4.6 C6).
package index

import (
	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/dubp"
)

// IIndexRow is one identity row: pubkey → uid, member, kick, wasMember
// (spec.md §3).
type IIndexRow struct {
	Pubkey    crypto.PublicKey
	UID       dubp.UID
	Member    bool
	Kick      bool
	WasMember bool
	WrittenOn uint32
}

// MIndexRow is one membership row: pubkey → chainable_on, expires_on,
// revoked_on, leaving (spec.md §3).
type MIndexRow struct {
	Pubkey      crypto.PublicKey
	ChainableOn uint32
	ExpiresOn   uint32
	RevokedOn   uint32 // 0 = not revoked
	Leaving     bool
	WrittenOn   uint32
}

// CIndexRow is one certification row: (issuer, receiver) → created_on,
// expires_on, chainable_on, written_on, expired_on (spec.md §3).
type CIndexRow struct {
	Issuer      crypto.PublicKey
	Receiver    crypto.PublicKey
	CreatedOn   uint32
	ExpiresOn   uint32
	ChainableOn uint32
	WrittenOn   uint32
	ExpiredOn   uint32 // 0 = not expired
}

// SourceKind distinguishes a spent-transaction-output source from a
// Universal Dividend redemption source.
type SourceKind int

const (
	SourceTx SourceKind = iota
	SourceUD
)

// SIndexRow is one transaction source row: (tx_hash, output_index |
// du_pubkey, du_block) → amount, base, conditions, consumed_on? (spec.md
// §3). Owner caches the pubkey that can unilaterally spend this source
// when its Condition is a bare SIG(pubkey) leaf (the common case); it is
// the zero PublicKey for any other condition shape, in which case
// `iter_sindex_by_pubkey` cannot match the row.
type SIndexRow struct {
	Kind SourceKind

	TxHash      crypto.Hash // SourceTx
	OutputIndex int64       // SourceTx

	DUPubkey crypto.PublicKey // SourceUD
	DUBlock  int64            // SourceUD

	Amount    dubp.Amount
	Condition *dubp.Condition
	Owner     crypto.PublicKey

	ConsumedOn *uint32 // nil = unconsumed
	WrittenOn  uint32
}

// OwnerOf derives the Owner cache from a source's condition tree and kind.
func OwnerOf(kind SourceKind, duPubkey crypto.PublicKey, cond *dubp.Condition) crypto.PublicKey {
	if kind == SourceUD {
		return duPubkey
	}
	if cond != nil && cond.Kind == dubp.CondSig {
		return cond.Pubkey
	}
	return crypto.PublicKey{}
}

// BIndexRow is one chain-head row: number, hash, issuer, time, median_time,
// diff (spec.md §3). WrittenOn always equals Number.
type BIndexRow struct {
	Number     uint32
	Hash       crypto.Hash
	Issuer     crypto.PublicKey
	Time       int64
	MedianTime int64
	Diff       uint64
}
