package index

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/store"
)

// Writer is the sole mutator of every index (spec.md §4.6, C6). It
// enforces single-writer mutual exclusion with a weighted semaphore sized
// 1: a concurrent Apply/RollbackTo is rejected outright rather than queued
// (spec.md §4.6: "concurrent writes from different threads are rejected
// by the writer's own mutual-exclusion").
type Writer struct {
	sem *semaphore.Weighted
	db  store.Database

	current atomic.Pointer[Snapshot]
}

// NewWriter returns a Writer backed by db for durability, starting from an
// empty index set.
func NewWriter(db store.Database) *Writer {
	w := &Writer{sem: semaphore.NewWeighted(1), db: db}
	w.current.Store(&Snapshot{})
	return w
}

// Snapshot returns the currently published, immutable index view.
func (w *Writer) Snapshot() *Snapshot {
	return w.current.Load()
}

func (w *Writer) tryLock() error {
	if !w.sem.TryAcquire(1) {
		return ErrWriterBusy
	}
	return nil
}

func (w *Writer) unlock() {
	w.sem.Release(1)
}

// Apply atomically materialises one block's index mutations and publishes
// the resulting Snapshot (spec.md §4.6). blockNumber must strictly exceed
// the current head's number.
func (w *Writer) Apply(blockNumber uint32, muts Mutations) (*Snapshot, error) {
	if err := w.tryLock(); err != nil {
		return nil, err
	}
	defer w.unlock()

	prev := w.current.Load()
	if head, ok := prev.GetBIndexHead(); ok && blockNumber <= head.Number {
		return nil, ErrBlockNotMonotonic
	}

	next := &Snapshot{
		iindex: append([]IIndexRow{}, prev.iindex...),
		mindex: append([]MIndexRow{}, prev.mindex...),
		cindex: append([]CIndexRow{}, prev.cindex...),
		sindex: append([]SIndexRow{}, prev.sindex...),
		bindex: append([]BIndexRow{}, prev.bindex...),
	}

	batch := w.db.NewBatch()

	for _, m := range muts.IIndex {
		if err := validateWrittenOn(m.Row.WrittenOn, blockNumber); err != nil {
			return nil, err
		}
		switch m.Kind {
		case MutationInsert:
			if rowIsMember(next.iindex, m.Row.Pubkey) && m.Row.Member {
				return nil, &InvariantError{Invariant: "I2", Detail: "pubkey already has a concurrently-member IINDEX row"}
			}
			next.iindex = append(next.iindex, m.Row)
		case MutationUpdate:
			next.iindex = replaceIIndex(next.iindex, m.Row)
		}
		if err := batch.Put(iindexKey(m.Row), encodeRow(m.Row)); err != nil {
			return nil, err
		}
	}

	for _, m := range muts.MIndex {
		if err := validateWrittenOn(m.Row.WrittenOn, blockNumber); err != nil {
			return nil, err
		}
		switch m.Kind {
		case MutationInsert:
			next.mindex = append(next.mindex, m.Row)
		case MutationUpdate:
			next.mindex = replaceMIndex(next.mindex, m.Row)
		}
		if err := batch.Put(mindexKey(m.Row), encodeRow(m.Row)); err != nil {
			return nil, err
		}
	}

	for _, m := range muts.CIndex {
		if err := validateWrittenOn(m.Row.WrittenOn, blockNumber); err != nil {
			return nil, err
		}
		switch m.Kind {
		case MutationInsert:
			if err := checkCIndexRecurrence(next.cindex, m.Row); err != nil {
				return nil, err
			}
			next.cindex = append(next.cindex, m.Row)
		case MutationUpdate:
			next.cindex = replaceCIndex(next.cindex, m.Row)
		}
		if err := batch.Put(cindexKey(m.Row), encodeRow(m.Row)); err != nil {
			return nil, err
		}
	}

	for _, m := range muts.SIndex {
		if m.Consume {
			row, err := consumeSIndex(next.sindex, m.Row, m.ConsumedAt)
			if err != nil {
				return nil, err
			}
			if err := batch.Put(sindexKey(row), encodeRow(row)); err != nil {
				return nil, err
			}
			continue
		}
		if err := validateWrittenOn(m.Row.WrittenOn, blockNumber); err != nil {
			return nil, err
		}
		next.sindex = append(next.sindex, m.Row)
		if err := batch.Put(sindexKey(m.Row), encodeRow(m.Row)); err != nil {
			return nil, err
		}
	}

	for _, row := range muts.BIndex {
		if row.Number != blockNumber {
			return nil, &InvariantError{Invariant: "I1", Detail: "BINDEX row number does not match the applied block"}
		}
		next.bindex = append(next.bindex, row)
		if err := batch.Put(bindexKey(row), encodeRow(row)); err != nil {
			return nil, err
		}
	}

	if err := batch.Write(); err != nil {
		return nil, err
	}

	w.current.Store(next)
	return next, nil
}

// RollbackTo drops every row with written_on > n and republishes the
// resulting Snapshot (spec.md §3 Lifecycle; §4.6: "a rewind is
// rollback_to(n) which drops every row with written_on > n").
func (w *Writer) RollbackTo(n uint32) (*Snapshot, error) {
	if err := w.tryLock(); err != nil {
		return nil, err
	}
	defer w.unlock()

	prev := w.current.Load()
	next := &Snapshot{}
	batch := w.db.NewBatch()

	for _, r := range prev.iindex {
		if r.WrittenOn > n {
			if err := batch.Delete(iindexKey(r)); err != nil {
				return nil, err
			}
			continue
		}
		next.iindex = append(next.iindex, r)
	}
	for _, r := range prev.mindex {
		if r.WrittenOn > n {
			if err := batch.Delete(mindexKey(r)); err != nil {
				return nil, err
			}
			continue
		}
		next.mindex = append(next.mindex, r)
	}
	for _, r := range prev.cindex {
		if r.WrittenOn > n {
			if err := batch.Delete(cindexKey(r)); err != nil {
				return nil, err
			}
			continue
		}
		next.cindex = append(next.cindex, r)
	}
	for _, r := range prev.sindex {
		if r.WrittenOn > n {
			if err := batch.Delete(sindexKey(r)); err != nil {
				return nil, err
			}
			continue
		}
		if r.ConsumedOn != nil && *r.ConsumedOn > n {
			unconsumed := r
			unconsumed.ConsumedOn = nil
			next.sindex = append(next.sindex, unconsumed)
			if err := batch.Put(sindexKey(unconsumed), encodeRow(unconsumed)); err != nil {
				return nil, err
			}
			continue
		}
		next.sindex = append(next.sindex, r)
	}
	for _, r := range prev.bindex {
		if r.Number > n {
			if err := batch.Delete(bindexKey(r)); err != nil {
				return nil, err
			}
			continue
		}
		next.bindex = append(next.bindex, r)
	}

	if err := batch.Write(); err != nil {
		return nil, err
	}

	w.current.Store(next)
	return next, nil
}

func validateWrittenOn(writtenOn, blockNumber uint32) error {
	if writtenOn > blockNumber {
		return &InvariantError{Invariant: "I1", Detail: "row written_on exceeds the block being applied"}
	}
	return nil
}

func rowIsMember(rows []IIndexRow, pk crypto.PublicKey) bool {
	for _, r := range rows {
		if r.Pubkey == pk && r.Member {
			return true
		}
	}
	return false
}

func replaceIIndex(rows []IIndexRow, row IIndexRow) []IIndexRow {
	for i, r := range rows {
		if r.Pubkey == row.Pubkey && r.WrittenOn == row.WrittenOn {
			rows[i] = row
			return rows
		}
	}
	return append(rows, row)
}

func replaceMIndex(rows []MIndexRow, row MIndexRow) []MIndexRow {
	for i, r := range rows {
		if r.Pubkey == row.Pubkey && r.WrittenOn == row.WrittenOn {
			rows[i] = row
			return rows
		}
	}
	return append(rows, row)
}

func replaceCIndex(rows []CIndexRow, row CIndexRow) []CIndexRow {
	for i, r := range rows {
		if r.Issuer == row.Issuer && r.Receiver == row.Receiver && r.WrittenOn == row.WrittenOn {
			rows[i] = row
			return rows
		}
	}
	return append(rows, row)
}

func sindexSameSource(a, b SIndexRow) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == SourceUD {
		return a.DUPubkey == b.DUPubkey && a.DUBlock == b.DUBlock
	}
	return a.TxHash == b.TxHash && a.OutputIndex == b.OutputIndex
}

func consumeSIndex(rows []SIndexRow, target SIndexRow, consumedAt uint32) (SIndexRow, error) {
	for i, r := range rows {
		if !sindexSameSource(r, target) {
			continue
		}
		if r.ConsumedOn != nil {
			return SIndexRow{}, &InvariantError{Invariant: "I4", Detail: "source already consumed"}
		}
		at := consumedAt
		rows[i].ConsumedOn = &at
		return rows[i], nil
	}
	return SIndexRow{}, &InvariantError{Invariant: "I4", Detail: "consumed source does not exist"}
}

func checkCIndexRecurrence(rows []CIndexRow, row CIndexRow) error {
	for _, r := range rows {
		if r.Issuer == row.Issuer && r.Receiver == row.Receiver && r.ExpiredOn == 0 {
			return &InvariantError{Invariant: "I3", Detail: "issuer/receiver pair already has a live certification"}
		}
	}
	return nil
}
