package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/dubp"
	"github.com/dunitrust/dunitrust/index"
	"github.com/dunitrust/dunitrust/params"
	"github.com/dunitrust/dunitrust/store/memorydb"
)

func mustKeyPair(t *testing.T) (crypto.PublicKey, crypto.PrivateKey) {
	t.Helper()
	pk, sk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return pk, sk
}

func sign(sk crypto.PrivateKey, doc dubp.Document) crypto.Signature {
	return crypto.Sign(sk, doc.CanonicalBytes())
}

func signedBlock(t *testing.T, issuerPK crypto.PublicKey, issuerSK crypto.PrivateKey, b *dubp.Block) *dubp.Block {
	t.Helper()
	b.Issuer = issuerPK
	b.InnerHash = b.ComputeInnerHash()
	b.Signature = sign(issuerSK, b)
	return b
}

func genesisBlock(t *testing.T, issuerPK crypto.PublicKey, issuerSK crypto.PrivateKey) *dubp.Block {
	t.Helper()
	b := &dubp.Block{
		Currency:     "g1",
		Number:       0,
		PreviousHash: crypto.Hash{},
		PowMin:       0,
		Time:         1600000000,
		MedianTime:   1600000000,
		IssuersCount: 1,
	}
	return signedBlock(t, issuerPK, issuerSK, b)
}

func childBlock(t *testing.T, parent *dubp.Block, issuerPK crypto.PublicKey, issuerSK crypto.PrivateKey) *dubp.Block {
	t.Helper()
	b := &dubp.Block{
		Currency:     parent.Currency,
		Number:       parent.Number + 1,
		PreviousHash: parent.Hash(),
		PowMin:       0,
		Time:         parent.Time + 1,
		MedianTime:   parent.Time,
		IssuersCount: 1,
	}
	return signedBlock(t, issuerPK, issuerSK, b)
}

func TestBootstrapAcceptsGenesis(t *testing.T) {
	pk, sk := mustKeyPair(t)
	genesis := genesisBlock(t, pk, sk)

	engine := NewEngine(params.DefaultG1)
	outcome, err := engine.Bootstrap(genesis)
	require.NoError(t, err)

	accepted, ok := outcome.(Accepted)
	require.True(t, ok, "expected Accepted, got %#v", outcome)
	require.Len(t, accepted.Mutations.BIndex, 1)
	assert.Equal(t, uint32(0), accepted.Mutations.BIndex[0].Number)
}

func TestBootstrapRejectsNonZeroGenesis(t *testing.T) {
	pk, sk := mustKeyPair(t)
	genesis := genesisBlock(t, pk, sk)
	genesis.Number = 1
	genesis.InnerHash = genesis.ComputeInnerHash()
	genesis.Signature = sign(sk, genesis)

	engine := NewEngine(params.DefaultG1)
	outcome, err := engine.Bootstrap(genesis)
	require.NoError(t, err)

	rejected, ok := outcome.(Rejected)
	require.True(t, ok, "expected Rejected, got %#v", outcome)
	assert.Equal(t, "bootstrap", rejected.Stage)
}

func TestValidateAcceptsSimpleChild(t *testing.T) {
	pk, sk := mustKeyPair(t)
	engine := NewEngine(params.DefaultG1)

	genesis := genesisBlock(t, pk, sk)
	outcome, err := engine.Bootstrap(genesis)
	require.NoError(t, err)
	require.IsType(t, Accepted{}, outcome)

	child := childBlock(t, genesis, pk, sk)
	childOutcome, err := engine.Validate(&index.Snapshot{}, NewRegistry(), genesis, child, []int64{genesis.Time})
	require.NoError(t, err)
	accepted, ok := childOutcome.(Accepted)
	require.True(t, ok, "expected Accepted, got %#v", childOutcome)
	assert.Len(t, accepted.Mutations.BIndex, 1)
}

func TestValidateRejectsBadSignature(t *testing.T) {
	pk, sk := mustKeyPair(t)
	otherPK, otherSK := mustKeyPair(t)
	_ = otherPK
	engine := NewEngine(params.DefaultG1)

	genesis := genesisBlock(t, pk, sk)
	child := childBlock(t, genesis, pk, sk)
	child.Signature = sign(otherSK, child) // wrong key

	outcome, err := engine.Validate(&index.Snapshot{}, NewRegistry(), genesis, child, []int64{genesis.Time})
	require.NoError(t, err)
	rejected, ok := outcome.(Rejected)
	require.True(t, ok, "expected Rejected, got %#v", outcome)
	assert.Equal(t, "structural", rejected.Stage)
}

func TestValidateRejectsNonMonotonicNumber(t *testing.T) {
	pk, sk := mustKeyPair(t)
	engine := NewEngine(params.DefaultG1)

	genesis := genesisBlock(t, pk, sk)
	child := childBlock(t, genesis, pk, sk)
	child.Number = 5 // not genesis.Number+1
	child.InnerHash = child.ComputeInnerHash()
	child.Signature = sign(sk, child)

	outcome, err := engine.Validate(&index.Snapshot{}, NewRegistry(), genesis, child, []int64{genesis.Time})
	require.NoError(t, err)
	rejected, ok := outcome.(Rejected)
	require.True(t, ok, "expected Rejected, got %#v", outcome)
	assert.Equal(t, "structural", rejected.Stage)
}

func TestValidateRejectsFutureTime(t *testing.T) {
	pk, sk := mustKeyPair(t)
	engine := NewEngine(params.DefaultG1)

	genesis := genesisBlock(t, pk, sk)
	child := childBlock(t, genesis, pk, sk)
	child.Time = genesis.Time + MaxTimeDrift + 1000
	child.InnerHash = child.ComputeInnerHash()
	child.Signature = sign(sk, child)

	outcome, err := engine.Validate(&index.Snapshot{}, NewRegistry(), genesis, child, []int64{genesis.Time})
	require.NoError(t, err)
	rejected, ok := outcome.(Rejected)
	require.True(t, ok, "expected Rejected, got %#v", outcome)
	assert.Equal(t, "temporal", rejected.Stage)
}

func TestValidateRejectsDuplicateUID(t *testing.T) {
	pk, sk := mustKeyPair(t)
	alicePK, _ := mustKeyPair(t)
	engine := NewEngine(params.DefaultG1)

	genesis := genesisBlock(t, pk, sk)

	existing := index.IIndexRow{Pubkey: alicePK, UID: dubp.UID("alice"), WrittenOn: 0}
	snap := snapshotWith(t, existing)

	alicePK2, aliceSK2 := mustKeyPair(t)
	idty2 := &dubp.Identity{
		Currency:  "g1",
		Issuer:    alicePK2,
		UniqueID:  dubp.UID("alice"),
		Timestamp: dubp.Blockstamp{Number: 0, Hash: crypto.Sha256(nil)},
	}
	idty2.Signature = sign(aliceSK2, idty2)

	child := childBlock(t, genesis, pk, sk)
	child.Identities = []*dubp.Identity{idty2}
	child.InnerHash = child.ComputeInnerHash()
	child.Signature = sign(sk, child)

	outcome, err := engine.Validate(snap, NewRegistry(), genesis, child, []int64{genesis.Time})
	require.NoError(t, err)
	rejected, ok := outcome.(Rejected)
	require.True(t, ok, "expected Rejected, got %#v", outcome)
	assert.Equal(t, "rule", rejected.Stage)
}

// snapshotWith builds a Snapshot containing exactly one IINDEX row, via a
// fresh in-memory Writer, exercising the real publication path instead of
// poking at Snapshot's private fields directly.
func snapshotWith(t *testing.T, row index.IIndexRow) *index.Snapshot {
	t.Helper()
	w := index.NewWriter(memorydb.New())
	snap, err := w.Apply(0, index.Mutations{
		IIndex: []index.IIndexMutation{{Kind: index.MutationInsert, Row: row}},
		BIndex: []index.BIndexRow{{Number: 0}},
	})
	require.NoError(t, err)
	return snap
}

// snapshotWithMember builds a Snapshot with one already-indexed identity
// and one already-chainable MINDEX row for the same pubkey, so a renewal
// Membership in a test block skips the first-join WoT distance rule.
func snapshotWithMember(t *testing.T, pk crypto.PublicKey, uid dubp.UID) *index.Snapshot {
	t.Helper()
	w := index.NewWriter(memorydb.New())
	snap, err := w.Apply(0, index.Mutations{
		IIndex: []index.IIndexMutation{{Kind: index.MutationInsert, Row: index.IIndexRow{
			Pubkey: pk, UID: uid, Member: true, WrittenOn: 0,
		}}},
		MIndex: []index.MIndexMutation{{Kind: index.MutationInsert, Row: index.MIndexRow{
			Pubkey: pk, ChainableOn: 0, ExpiresOn: 1000, WrittenOn: 0,
		}}},
		BIndex: []index.BIndexRow{{Number: 0}},
	})
	require.NoError(t, err)
	return snap
}

func TestValidateMembershipInMaterialisesMemberFlag(t *testing.T) {
	pk, sk := mustKeyPair(t)
	engine := NewEngine(params.DefaultG1)

	genesis := genesisBlock(t, pk, sk)
	snap := snapshotWithMember(t, pk, dubp.UID("alice"))

	ms := &dubp.Membership{
		Currency: "g1",
		Issuer:   pk,
		Type:     dubp.MembershipIn,
		UserID:   dubp.UID("alice"),
		Block:    dubp.Blockstamp{Number: 1, Hash: crypto.Sha256(nil)},
	}
	ms.Signature = sign(sk, ms)

	child := childBlock(t, genesis, pk, sk)
	child.Memberships = []*dubp.Membership{ms}
	child.InnerHash = child.ComputeInnerHash()
	child.Signature = sign(sk, child)

	outcome, err := engine.Validate(snap, NewRegistry(), genesis, child, []int64{genesis.Time})
	require.NoError(t, err)
	accepted, ok := outcome.(Accepted)
	require.True(t, ok, "expected Accepted, got %#v", outcome)

	require.Len(t, accepted.Mutations.IIndex, 1)
	row := accepted.Mutations.IIndex[0].Row
	assert.True(t, row.Member)
	assert.Equal(t, dubp.UID("alice"), row.UID)
	assert.Equal(t, child.Number, row.WrittenOn)
}

func TestValidateRevocationClearsMemberFlag(t *testing.T) {
	pk, sk := mustKeyPair(t)
	engine := NewEngine(params.DefaultG1)

	genesis := genesisBlock(t, pk, sk)
	snap := snapshotWithMember(t, pk, dubp.UID("alice"))

	idty := &dubp.Identity{
		Currency:  "g1",
		Issuer:    pk,
		UniqueID:  dubp.UID("alice"),
		Timestamp: dubp.Blockstamp{Number: 0, Hash: crypto.Sha256(nil)},
	}
	idty.Signature = sign(sk, idty)

	rev := &dubp.Revocation{
		Currency:      "g1",
		Issuer:        pk,
		IdtyUniqueID:  dubp.UID("alice"),
		IdtyTimestamp: idty.Timestamp,
		IdtySignature: idty.Signature,
	}
	rev.Signature = sign(sk, rev)

	child := childBlock(t, genesis, pk, sk)
	child.Revocations = []*dubp.Revocation{rev}
	child.InnerHash = child.ComputeInnerHash()
	child.Signature = sign(sk, child)

	outcome, err := engine.Validate(snap, NewRegistry(), genesis, child, []int64{genesis.Time})
	require.NoError(t, err)
	accepted, ok := outcome.(Accepted)
	require.True(t, ok, "expected Accepted, got %#v", outcome)

	require.Len(t, accepted.Mutations.IIndex, 1)
	row := accepted.Mutations.IIndex[0].Row
	assert.False(t, row.Member)
	assert.True(t, row.WasMember)
	assert.Equal(t, dubp.UID("alice"), row.UID)
}
