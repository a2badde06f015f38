package dubp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunitrust/dunitrust/crypto"
)

func mustKeyPair(t *testing.T) (crypto.PublicKey, crypto.PrivateKey) {
	t.Helper()
	pk, sk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return pk, sk
}

func sign(sk crypto.PrivateKey, doc Document) crypto.Signature {
	return crypto.Sign(sk, doc.CanonicalBytes())
}

func zeroHash() crypto.Hash {
	return crypto.Sha256([]byte{})
}

// Scenario 1 (spec.md §8): Identity round-trip on a literal wire form.
func TestIdentityRoundTripLiteralScenario(t *testing.T) {
	literal := "Version: 10\n" +
		"Type: Identity\n" +
		"Currency: g1\n" +
		"Issuer: DnjL6hYA1k7FavGHbbir79PKQbmzw63sLG3q6yP3JRQn\n" +
		"UniqueID: alice\n" +
		"Timestamp: 0-E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855\n" +
		strings.Repeat("A", 86) + "==\n"

	doc, err := Parse([]byte(literal))
	require.NoError(t, err)
	idty, ok := doc.(*Identity)
	require.True(t, ok)
	assert.Equal(t, "g1", idty.Currency)
	assert.Equal(t, UID("alice"), idty.UniqueID)
	assert.Equal(t, uint32(0), idty.Timestamp.Number)

	wantCanonical := strings.TrimSuffix(literal, strings.Repeat("A", 86)+"==\n")
	assert.Equal(t, wantCanonical, string(idty.CanonicalBytes()))
}

func TestIdentityRoundTripGenerated(t *testing.T) {
	pk, sk := mustKeyPair(t)
	idty := &Identity{
		Currency:  "g1",
		Issuer:    pk,
		UniqueID:  "bob",
		Timestamp: Blockstamp{Number: 42, Hash: zeroHash()},
	}
	idty.Signature = sign(sk, idty)

	wire := append(idty.CanonicalBytes(), []byte(crypto.Base64Encode(idty.Signature)+"\n")...)
	parsed, err := Parse(wire)
	require.NoError(t, err)
	require.NoError(t, Verify(parsed))
	assert.Equal(t, idty.CanonicalBytes(), parsed.CanonicalBytes())
}

func TestMembershipRoundTrip(t *testing.T) {
	pk, sk := mustKeyPair(t)
	m := &Membership{
		Currency: "g1",
		Issuer:   pk,
		Block:    Blockstamp{Number: 10, Hash: zeroHash()},
		Type:     MembershipIn,
		UserID:   "carol",
		CertTS:   Blockstamp{Number: 5, Hash: zeroHash()},
	}
	m.Signature = sign(sk, m)
	wire := append(m.CanonicalBytes(), []byte(crypto.Base64Encode(m.Signature)+"\n")...)

	parsed, err := Parse(wire)
	require.NoError(t, err)
	require.NoError(t, Verify(parsed))
	got, ok := parsed.(*Membership)
	require.True(t, ok)
	assert.Equal(t, MembershipIn, got.Type)
}

func TestCertificationRoundTrip(t *testing.T) {
	certifierPK, certifierSK := mustKeyPair(t)
	idtyPK, idtySK := mustKeyPair(t)

	idty := &Identity{Currency: "g1", Issuer: idtyPK, UniqueID: "dave", Timestamp: Blockstamp{Number: 1, Hash: zeroHash()}}
	idty.Signature = sign(idtySK, idty)

	cert := &Certification{
		Currency:      "g1",
		Certifier:     certifierPK,
		IdtyIssuer:    idtyPK,
		IdtyUniqueID:  idty.UniqueID,
		IdtyTimestamp: idty.Timestamp,
		IdtySignature: idty.Signature,
		CertTimestamp: Blockstamp{Number: 2, Hash: zeroHash()},
	}
	cert.Signature = sign(certifierSK, cert)
	wire := append(cert.CanonicalBytes(), []byte(crypto.Base64Encode(cert.Signature)+"\n")...)

	parsed, err := Parse(wire)
	require.NoError(t, err)
	require.NoError(t, Verify(parsed))
}

func TestRevocationRoundTrip(t *testing.T) {
	pk, sk := mustKeyPair(t)
	r := &Revocation{
		Currency:      "g1",
		Issuer:        pk,
		IdtyUniqueID:  "erin",
		IdtyTimestamp: Blockstamp{Number: 3, Hash: zeroHash()},
		IdtySignature: crypto.Sign(sk, []byte("identity-bytes")),
	}
	r.Signature = sign(sk, r)
	wire := append(r.CanonicalBytes(), []byte(crypto.Base64Encode(r.Signature)+"\n")...)

	parsed, err := Parse(wire)
	require.NoError(t, err)
	require.NoError(t, Verify(parsed))
}

// Scenario 2 (spec.md §8): transaction balance with one UD-redemption input
// and one spent-output input.
func TestTransactionBalanceScenario(t *testing.T) {
	pk, sk := mustKeyPair(t)
	tx := &Transaction{
		Currency:  "g1",
		Block:     Blockstamp{Number: 100, Hash: zeroHash()},
		Locktime:  0,
		IssuerPKs: []crypto.PublicKey{pk},
		Inputs: []Input{
			{Amount: Amount{Value: 10, Base: 0}, Kind: InputSourceTx, TxHash: zeroHash(), OutputIndex: 0},
			{Amount: Amount{Value: 5, Base: 0}, Kind: InputSourceUD, UDIssuer: pk, UDBlockID: 42},
		},
		Unlocks: []Unlock{
			{InputIndex: 0, Expr: &UnlockExpr{Kind: UnlockSig, IssuerIndex: 0}},
			{InputIndex: 1, Expr: &UnlockExpr{Kind: UnlockSig, IssuerIndex: 0}},
		},
		Outputs: []Output{
			{Amount: Amount{Value: 15, Base: 0}, Condition: &Condition{Kind: CondSig, Pubkey: pk}},
		},
		Comment: "",
	}
	tx.Sigs = []crypto.Signature{sign(sk, tx)}

	wire := tx.CanonicalBytes()
	for _, s := range tx.Sigs {
		wire = append(wire, []byte(crypto.Base64Encode(s)+"\n")...)
	}
	parsed, err := Parse(wire)
	require.NoError(t, err)
	require.NoError(t, Verify(parsed))

	got, ok := parsed.(*Transaction)
	require.True(t, ok)

	var total int64
	for _, in := range got.Inputs {
		n, err := in.Amount.Normalized()
		require.NoError(t, err)
		total += n
	}
	var outTotal int64
	for _, o := range got.Outputs {
		n, err := o.Amount.Normalized()
		require.NoError(t, err)
		outTotal += n
	}
	assert.Equal(t, total, outTotal)
}

func transactionWithNIssuers(t *testing.T, n int) *Transaction {
	t.Helper()
	pks := make([]crypto.PublicKey, n)
	sks := make([]crypto.PrivateKey, n)
	for i := 0; i < n; i++ {
		pks[i], sks[i] = mustKeyPair(t)
	}
	unlocks := make([]Unlock, n)
	for i := 0; i < n; i++ {
		unlocks[i] = Unlock{InputIndex: 0, Expr: &UnlockExpr{Kind: UnlockSig, IssuerIndex: i}}
	}
	tx := &Transaction{
		Currency:  "g1",
		Block:     Blockstamp{Number: 1, Hash: zeroHash()},
		IssuerPKs: pks,
		Inputs: []Input{
			{Amount: Amount{Value: 1, Base: 0}, Kind: InputSourceTx, TxHash: zeroHash(), OutputIndex: 0},
		},
		Unlocks: unlocks,
		Outputs: []Output{
			{Amount: Amount{Value: 1, Base: 0}, Condition: &Condition{Kind: CondSig, Pubkey: pks[0]}},
		},
	}
	sigs := make([]crypto.Signature, n)
	for i := range sks {
		sigs[i] = sign(sks[i], tx)
	}
	tx.Sigs = sigs
	return tx
}

// Boundary test (spec.md §8): 1 issuer/1 input/1 output and the maximum
// documented 40 issuers both validate.
func TestTransactionIssuerCountBoundaries(t *testing.T) {
	for _, n := range []int{1, 40} {
		tx := transactionWithNIssuers(t, n)
		wire := tx.CanonicalBytes()
		for _, s := range tx.Sigs {
			wire = append(wire, []byte(crypto.Base64Encode(s)+"\n")...)
		}
		parsed, err := Parse(wire)
		require.NoError(t, err, "n=%d", n)
		require.NoError(t, Verify(parsed), "n=%d", n)
		got := parsed.(*Transaction)
		assert.Len(t, got.IssuerPKs, n)
	}
}

// Boundary test (spec.md §8): block_id 0 and 2^32-1 both parse.
func TestBlockstampNumberBoundaries(t *testing.T) {
	h := zeroHash().HexUpper()
	for _, n := range []string{"0", "4294967295"} {
		bs, err := ParseBlockstamp(n + "-" + h)
		require.NoError(t, err)
		assert.Equal(t, n, bs.String()[:len(n)])
	}
}

// Boundary test (spec.md §8): signatures in the padding forms that actually
// occur for a fixed 64-byte Ed25519 signature — full "==" padding, and the
// unpadded form some upstream tools emit. (A single trailing '=' never
// arises here: 64 mod 3 == 1, so base64 padding is either 0 or 2 chars.)
func TestSignatureBase64PaddingForms(t *testing.T) {
	_, sk := mustKeyPair(t)
	sig := crypto.Sign(sk, []byte("padding-forms"))
	std := crypto.Base64Encode(sig)
	require.True(t, strings.HasSuffix(std, "=="))

	forms := []string{
		std,
		strings.TrimRight(std, "="),
	}
	for _, f := range forms {
		got, err := crypto.Base64Decode(f)
		require.NoError(t, err, "form %q", f)
		assert.Equal(t, sig, got)
	}
}

// Boundary test (spec.md §8): comment exactly 255 chars and 0 chars.
func TestTransactionCommentLengthBoundaries(t *testing.T) {
	pk, sk := mustKeyPair(t)
	for _, length := range []int{0, MaxCommentLength} {
		tx := &Transaction{
			Currency:  "g1",
			Block:     Blockstamp{Number: 1, Hash: zeroHash()},
			IssuerPKs: []crypto.PublicKey{pk},
			Inputs: []Input{
				{Amount: Amount{Value: 1, Base: 0}, Kind: InputSourceTx, TxHash: zeroHash(), OutputIndex: 0},
			},
			Unlocks: []Unlock{{InputIndex: 0, Expr: &UnlockExpr{Kind: UnlockSig, IssuerIndex: 0}}},
			Outputs: []Output{
				{Amount: Amount{Value: 1, Base: 0}, Condition: &Condition{Kind: CondSig, Pubkey: pk}},
			},
			Comment: strings.Repeat("x", length),
		}
		tx.Sigs = []crypto.Signature{sign(sk, tx)}
		wire := tx.CanonicalBytes()
		for _, s := range tx.Sigs {
			wire = append(wire, []byte(crypto.Base64Encode(s)+"\n")...)
		}
		parsed, err := Parse(wire)
		require.NoError(t, err, "length=%d", length)
		got := parsed.(*Transaction)
		assert.Len(t, got.Comment, length)
	}
}

func TestTransactionCommentTooLongRejected(t *testing.T) {
	pk, sk := mustKeyPair(t)
	tx := &Transaction{
		Currency:  "g1",
		Block:     Blockstamp{Number: 1, Hash: zeroHash()},
		IssuerPKs: []crypto.PublicKey{pk},
		Inputs: []Input{
			{Amount: Amount{Value: 1, Base: 0}, Kind: InputSourceTx, TxHash: zeroHash(), OutputIndex: 0},
		},
		Unlocks: []Unlock{{InputIndex: 0, Expr: &UnlockExpr{Kind: UnlockSig, IssuerIndex: 0}}},
		Outputs: []Output{
			{Amount: Amount{Value: 1, Base: 0}, Condition: &Condition{Kind: CondSig, Pubkey: pk}},
		},
		Comment: strings.Repeat("x", MaxCommentLength+1),
	}
	tx.Sigs = []crypto.Signature{sign(sk, tx)}
	wire := tx.CanonicalBytes()
	for _, s := range tx.Sigs {
		wire = append(wire, []byte(crypto.Base64Encode(s)+"\n")...)
	}
	_, err := Parse(wire)
	assert.Error(t, err)
}

// Boundary test (spec.md §8): Base58 pubkey of exactly 43 and 44 characters.
func TestBase58PubkeyLengthBoundaries(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 256 && len(seen) < 2; i++ {
		pk, _ := mustKeyPair(t)
		enc := crypto.Base58Encode(pk)
		if len(enc) == 43 || len(enc) == 44 {
			seen[len(enc)] = true
			decoded, err := crypto.Base58Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, pk, decoded)
		}
	}
	assert.NotEmpty(t, seen, "expected to observe at least one 43- or 44-char base58 pubkey across samples")
}

func TestDocumentSignatureMismatchRejected(t *testing.T) {
	pk, _ := mustKeyPair(t)
	_, otherSK := mustKeyPair(t)
	idty := &Identity{Currency: "g1", Issuer: pk, UniqueID: "frank", Timestamp: Blockstamp{Number: 1, Hash: zeroHash()}}
	idty.Signature = sign(otherSK, idty)

	err := Verify(idty)
	var sigErr *SignatureError
	assert.ErrorAs(t, err, &sigErr)
}

func TestConditionParsePrecedenceAndRoundTrip(t *testing.T) {
	pk, _ := mustKeyPair(t)
	src := "SIG(" + crypto.Base58Encode(pk) + ")&&CSV(15724800)||CLTV(1500000000)"
	cond, err := ParseCondition(src)
	require.NoError(t, err)
	assert.Equal(t, src, cond.String())
	assert.Equal(t, CondOr, cond.Kind)
	assert.Equal(t, CondAnd, cond.Left.Kind)
}

func TestConditionEmptyArgIsParseError(t *testing.T) {
	_, err := ParseCondition("SIG()")
	assert.ErrorIs(t, err, ErrEmptyConditionArg)
}

func TestUnlockParseAndString(t *testing.T) {
	u, err := ParseUnlock("2:SIG(0)&&XHX(mysecret)")
	require.NoError(t, err)
	assert.Equal(t, 2, u.InputIndex)
	assert.Equal(t, "2:SIG(0)&&XHX(mysecret)", u.String())
}
