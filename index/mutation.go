package index

// MutationKind discriminates a row insert from a row update, per spec.md
// §4.6: "mutations is a batch of row inserts, row updates (consume,
// expire, kick), and row deletes (rollback only)".
type MutationKind int

const (
	MutationInsert MutationKind = iota
	MutationUpdate
)

// Mutations is one block's worth of index changes, handed to Writer.Apply
// as a single atomic batch (spec.md §4.6).
type Mutations struct {
	IIndex []IIndexMutation
	MIndex []MIndexMutation
	CIndex []CIndexMutation
	SIndex []SIndexMutation
	BIndex []BIndexRow // BINDEX only ever gains one row per accepted block
}

type IIndexMutation struct {
	Kind MutationKind
	Row  IIndexRow
}

type MIndexMutation struct {
	Kind MutationKind
	Row  MIndexRow
}

type CIndexMutation struct {
	Kind MutationKind
	Row  CIndexRow
}

// SIndexMutation additionally supports a bare "consume" update that only
// sets ConsumedOn on an existing unconsumed row, identified by its source
// key rather than requiring the full row to be re-supplied.
type SIndexMutation struct {
	Kind MutationKind
	Row  SIndexRow

	// Consume, when true, looks up the existing row matching Row's source
	// identity and sets its ConsumedOn to ConsumedAt instead of inserting.
	Consume    bool
	ConsumedAt uint32
}
