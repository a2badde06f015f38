package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/dubp"
	"github.com/dunitrust/dunitrust/store/memorydb"
)

func pkFromByte(b byte) crypto.PublicKey {
	var pk crypto.PublicKey
	pk[0] = b
	return pk
}

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	return NewWriter(memorydb.New())
}

func TestApplyFirstBlockPublishesSnapshot(t *testing.T) {
	w := newTestWriter(t)
	alice := pkFromByte(1)

	snap, err := w.Apply(0, Mutations{
		IIndex: []IIndexMutation{{Kind: MutationInsert, Row: IIndexRow{Pubkey: alice, UID: "alice", Member: true, WrittenOn: 0}}},
		BIndex: []BIndexRow{{Number: 0}},
	})
	require.NoError(t, err)

	rows := snap.IterIIndexByPubkey(alice)
	require.Len(t, rows, 1)
	assert.Equal(t, dubp.UID("alice"), rows[0].UID)

	head, ok := snap.GetBIndexHead()
	require.True(t, ok)
	assert.Equal(t, uint32(0), head.Number)
}

func TestApplyRejectsNonMonotonicBlockNumber(t *testing.T) {
	w := newTestWriter(t)
	_, err := w.Apply(5, Mutations{BIndex: []BIndexRow{{Number: 5}}})
	require.NoError(t, err)

	_, err = w.Apply(5, Mutations{BIndex: []BIndexRow{{Number: 5}}})
	assert.ErrorIs(t, err, ErrBlockNotMonotonic)

	_, err = w.Apply(4, Mutations{BIndex: []BIndexRow{{Number: 4}}})
	assert.ErrorIs(t, err, ErrBlockNotMonotonic)
}

func TestApplyRejectsConcurrentMembership(t *testing.T) {
	w := newTestWriter(t)
	alice := pkFromByte(1)

	_, err := w.Apply(0, Mutations{
		IIndex: []IIndexMutation{{Kind: MutationInsert, Row: IIndexRow{Pubkey: alice, Member: true, WrittenOn: 0}}},
		BIndex: []BIndexRow{{Number: 0}},
	})
	require.NoError(t, err)

	_, err = w.Apply(1, Mutations{
		IIndex: []IIndexMutation{{Kind: MutationInsert, Row: IIndexRow{Pubkey: alice, Member: true, WrittenOn: 1}}},
		BIndex: []BIndexRow{{Number: 1}},
	})
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "I2", invErr.Invariant)
}

func TestApplyRejectsDoubleConsumeOfSource(t *testing.T) {
	w := newTestWriter(t)
	alice := pkFromByte(1)
	cond := &dubp.Condition{Kind: dubp.CondSig, Pubkey: alice}
	source := SIndexRow{
		Kind: SourceTx, TxHash: crypto.Hash{0xAA}, OutputIndex: 0,
		Amount: dubp.Amount{Value: 100}, Condition: cond, Owner: alice, WrittenOn: 0,
	}

	_, err := w.Apply(0, Mutations{
		SIndex: []SIndexMutation{{Kind: MutationInsert, Row: source}},
		BIndex: []BIndexRow{{Number: 0}},
	})
	require.NoError(t, err)

	_, err = w.Apply(1, Mutations{
		SIndex: []SIndexMutation{{Consume: true, Row: source, ConsumedAt: 1}},
		BIndex: []BIndexRow{{Number: 1}},
	})
	require.NoError(t, err)

	_, err = w.Apply(2, Mutations{
		SIndex: []SIndexMutation{{Consume: true, Row: source, ConsumedAt: 2}},
		BIndex: []BIndexRow{{Number: 2}},
	})
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "I4", invErr.Invariant)
}

func TestApplyRejectsRecurrentCertification(t *testing.T) {
	w := newTestWriter(t)
	alice, bob := pkFromByte(1), pkFromByte(2)

	_, err := w.Apply(0, Mutations{
		CIndex: []CIndexMutation{{Kind: MutationInsert, Row: CIndexRow{Issuer: alice, Receiver: bob, WrittenOn: 0}}},
		BIndex: []BIndexRow{{Number: 0}},
	})
	require.NoError(t, err)

	_, err = w.Apply(1, Mutations{
		CIndex: []CIndexMutation{{Kind: MutationInsert, Row: CIndexRow{Issuer: alice, Receiver: bob, WrittenOn: 1}}},
		BIndex: []BIndexRow{{Number: 1}},
	})
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "I3", invErr.Invariant)
}

func TestRollbackToDropsLaterRowsAndUnconsumes(t *testing.T) {
	w := newTestWriter(t)
	alice := pkFromByte(1)
	cond := &dubp.Condition{Kind: dubp.CondSig, Pubkey: alice}
	source := SIndexRow{
		Kind: SourceTx, TxHash: crypto.Hash{0xBB}, OutputIndex: 0,
		Amount: dubp.Amount{Value: 50}, Condition: cond, Owner: alice, WrittenOn: 0,
	}

	_, err := w.Apply(0, Mutations{
		IIndex: []IIndexMutation{{Kind: MutationInsert, Row: IIndexRow{Pubkey: alice, Member: true, WrittenOn: 0}}},
		SIndex: []SIndexMutation{{Kind: MutationInsert, Row: source}},
		BIndex: []BIndexRow{{Number: 0}},
	})
	require.NoError(t, err)

	_, err = w.Apply(1, Mutations{
		SIndex: []SIndexMutation{{Consume: true, Row: source, ConsumedAt: 1}},
		BIndex: []BIndexRow{{Number: 1}},
	})
	require.NoError(t, err)

	snap, err := w.RollbackTo(0)
	require.NoError(t, err)

	_, ok := snap.GetBIndexHead()
	require.True(t, ok)
	head, _ := snap.GetBIndexHead()
	assert.Equal(t, uint32(0), head.Number)

	unconsumed := snap.IterSIndexByPubkey(alice)
	require.Len(t, unconsumed, 1)
	assert.Nil(t, unconsumed[0].ConsumedOn)

	members := snap.IterIIndexByPubkey(alice)
	require.Len(t, members, 1)
}

func TestConcurrentApplyRejectsWithWriterBusy(t *testing.T) {
	w := newTestWriter(t)
	require.True(t, w.sem.TryAcquire(1))

	_, err := w.Apply(0, Mutations{BIndex: []BIndexRow{{Number: 0}}})
	assert.ErrorIs(t, err, ErrWriterBusy)

	w.sem.Release(1)
}

func TestSnapshotIsolationAcrossConcurrentApply(t *testing.T) {
	w := newTestWriter(t)
	alice := pkFromByte(1)

	before := w.Snapshot()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := w.Apply(0, Mutations{
			IIndex: []IIndexMutation{{Kind: MutationInsert, Row: IIndexRow{Pubkey: alice, Member: true, WrittenOn: 0}}},
			BIndex: []BIndexRow{{Number: 0}},
		})
		require.NoError(t, err)
	}()
	wg.Wait()

	assert.Empty(t, before.IterIIndexByPubkey(alice))
	assert.NotEmpty(t, w.Snapshot().IterIIndexByPubkey(alice))
}
