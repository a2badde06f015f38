package dubp

import (
	"fmt"
	"strconv"

	"github.com/dunitrust/dunitrust/crypto"
)

// BlockDocumentVersion is the only block grammar version this codec
// accepts, distinct from DocumentVersion since a block envelope is not
// itself one of the five inner-document variants (spec.md §3 "Block").
const BlockDocumentVersion = 10

// Block is the ordered envelope of inner documents plus header fields,
// PoW nonce, and issuer signature (spec.md §3 "Block"; §4.7 stages 1-2).
// Its hash is SHA-256 of the canonical textual form including InnerHash
// and Nonce, but excluding the trailing Signature line.
type Block struct {
	Currency     string
	Number       uint32
	PreviousHash crypto.Hash // zero value for the genesis block
	Issuer       crypto.PublicKey
	PowMin       int
	Time         int64
	MedianTime   int64

	// UnitBase/Dividend reflect the optional UD issued by this block
	// (spec.md §4.7 rule-level: "UD correctness"). Dividend is nil on a
	// block that issues no UD.
	UnitBase uint8
	Dividend *int64

	MembersCount    int
	IssuersCount    int
	IssuersFrame    int
	IssuersFrameVar int

	Identities     []*Identity
	Memberships    []*Membership
	Certifications []*Certification
	Revocations    []*Revocation
	Transactions   []*Transaction

	Nonce     uint64
	InnerHash crypto.Hash
	Signature crypto.Signature
}

func (b *Block) headerLines() []string {
	lines := []string{
		fmt.Sprintf("Version: %d", BlockDocumentVersion),
		"Type: Block",
		"Currency: " + b.Currency,
		"Number: " + strconv.FormatUint(uint64(b.Number), 10),
		"PreviousHash: " + b.PreviousHash.HexUpper(),
		"Issuer: " + crypto.Base58Encode(b.Issuer),
		"PoWMin: " + strconv.Itoa(b.PowMin),
		"Time: " + strconv.FormatInt(b.Time, 10),
		"MedianTime: " + strconv.FormatInt(b.MedianTime, 10),
		"UnitBase: " + strconv.Itoa(int(b.UnitBase)),
		"MembersCount: " + strconv.Itoa(b.MembersCount),
		"IssuersCount: " + strconv.Itoa(b.IssuersCount),
		"IssuersFrame: " + strconv.Itoa(b.IssuersFrame),
		"IssuersFrameVar: " + strconv.Itoa(b.IssuersFrameVar),
	}
	if b.Dividend != nil {
		lines = append(lines, "UniversalDividend: "+strconv.FormatInt(*b.Dividend, 10))
	}
	return lines
}

// innerLines emits the header, then each inner document category under a
// counted-list header (the same "Key:N" convention Transaction uses for
// Issuers/Inputs/Unlocks/Outputs), each entry preceded by its own byte
// length so a parser can lift it back out without re-deriving document
// boundaries from content (spec.md gives no literal block grammar to
// follow here, so this length-prefix scheme is this codec's own choice —
// see DESIGN.md).
func (b *Block) innerLines() []string {
	lines := b.headerLines()
	lines = append(lines, encodeDocGroup("Identities", docsToDocuments(b.Identities))...)
	lines = append(lines, encodeDocGroup("Memberships", docsToDocuments(b.Memberships))...)
	lines = append(lines, encodeDocGroup("Certifications", docsToDocuments(b.Certifications))...)
	lines = append(lines, encodeDocGroup("Revocations", docsToDocuments(b.Revocations))...)
	lines = append(lines, encodeDocGroup("Transactions", docsToDocuments(b.Transactions))...)
	return lines
}

func encodeDocGroup(key string, docs []Document) []string {
	lines := []string{fmt.Sprintf("%s:%d", key, len(docs))}
	for _, d := range docs {
		encoded := encodeDocument(d)
		lines = append(lines, fmt.Sprintf("DocLen:%d", len(encoded)), string(encoded))
	}
	return lines
}

func docsToDocuments[T Document](in []T) []Document {
	out := make([]Document, len(in))
	for i, d := range in {
		out[i] = d
	}
	return out
}

// ComputeInnerHash returns sha256 over the header and inner documents,
// excluding InnerHash/Nonce/Signature themselves.
func (b *Block) ComputeInnerHash() crypto.Hash {
	return crypto.Sha256(joinLines(b.innerLines()))
}

// preSignatureBytes is the full signable form: inner lines plus the
// InnerHash and Nonce lines (spec.md §3: "hash is SHA-256 of the canonical
// textual form including its inner hash and nonce").
func (b *Block) preSignatureBytes() []byte {
	lines := b.innerLines()
	lines = append(lines,
		"InnerHash: "+b.InnerHash.HexUpper(),
		"Nonce: "+strconv.FormatUint(b.Nonce, 10),
	)
	return joinLines(lines)
}

// CanonicalBytes implements Document; a Block is signed over exactly its
// pre-signature bytes.
func (b *Block) CanonicalBytes() []byte { return b.preSignatureBytes() }

func (b *Block) Variant() Variant               { return VariantBlock }
func (b *Block) Issuers() []crypto.PublicKey    { return []crypto.PublicKey{b.Issuer} }
func (b *Block) Signatures() []crypto.Signature { return []crypto.Signature{b.Signature} }

// Hash returns the block hash: SHA-256 of CanonicalBytes (spec.md §3).
// Unlike InnerHash, this covers the Nonce too and is what PoW mining
// targets and what validation's structural stage compares leading zeros
// against.
func (b *Block) Hash() crypto.Hash { return crypto.Sha256(b.CanonicalBytes()) }

// Verify checks InnerHash consistency and the issuer signature.
func (b *Block) Verify() error {
	if b.ComputeInnerHash() != b.InnerHash {
		return fmt.Errorf("dubp: block %d inner hash mismatch", b.Number)
	}
	return Verify(b)
}

// EncodeBlock serialises a signed block to its wire form: pre-signature
// bytes followed by the issuer's signature line.
func EncodeBlock(b *Block) []byte {
	out := b.preSignatureBytes()
	out = append(out, crypto.Base64Encode(b.Signature)...)
	out = append(out, '\n')
	return out
}

// ParseBlock parses a Block from its wire form, produced by EncodeBlock.
func ParseBlock(data []byte) (*Block, error) {
	s := newLineScanner(data)
	if err := s.expectLine(fmt.Sprintf("Version: %d", BlockDocumentVersion)); err != nil {
		return nil, err
	}
	if err := s.expectLine("Type: Block"); err != nil {
		return nil, err
	}
	b := &Block{}
	var err error

	if b.Currency, err = s.expectField("Currency", false); err != nil {
		return nil, err
	}
	numStr, err := s.expectField("Number", false)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("dubp: malformed block Number %q: %w", numStr, err)
	}
	b.Number = uint32(n)

	prevStr, err := s.expectField("PreviousHash", false)
	if err != nil {
		return nil, err
	}
	if b.PreviousHash, err = crypto.HashFromHex(prevStr); err != nil {
		return nil, err
	}

	issuerStr, err := s.expectField("Issuer", false)
	if err != nil {
		return nil, err
	}
	if b.Issuer, err = crypto.Base58Decode(issuerStr); err != nil {
		return nil, err
	}

	if b.PowMin, err = expectIntField(s, "PoWMin"); err != nil {
		return nil, err
	}
	if b.Time, err = expectInt64Field(s, "Time"); err != nil {
		return nil, err
	}
	if b.MedianTime, err = expectInt64Field(s, "MedianTime"); err != nil {
		return nil, err
	}
	ub, err := expectIntField(s, "UnitBase")
	if err != nil {
		return nil, err
	}
	b.UnitBase = uint8(ub)

	if b.MembersCount, err = expectIntField(s, "MembersCount"); err != nil {
		return nil, err
	}
	if b.IssuersCount, err = expectIntField(s, "IssuersCount"); err != nil {
		return nil, err
	}
	if b.IssuersFrame, err = expectIntField(s, "IssuersFrame"); err != nil {
		return nil, err
	}
	if b.IssuersFrameVar, err = expectIntField(s, "IssuersFrameVar"); err != nil {
		return nil, err
	}

	if line, ok := s.peek(); ok && hasFieldPrefix(line, "UniversalDividend") {
		s.next()
		ud, err := strconv.ParseInt(line[len("UniversalDividend: "):], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dubp: malformed UniversalDividend: %w", err)
		}
		b.Dividend = &ud
	}

	nIdentities, err := expectCountedHeader(s, "Identities")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nIdentities; i++ {
		doc, err := nextBlockDocument(s)
		if err != nil {
			return nil, err
		}
		idt, ok := doc.(*Identity)
		if !ok {
			return nil, fmt.Errorf("dubp: expected Identity in block, got %s", doc.Variant())
		}
		b.Identities = append(b.Identities, idt)
	}

	nMemberships, err := expectCountedHeader(s, "Memberships")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nMemberships; i++ {
		doc, err := nextBlockDocument(s)
		if err != nil {
			return nil, err
		}
		m, ok := doc.(*Membership)
		if !ok {
			return nil, fmt.Errorf("dubp: expected Membership in block, got %s", doc.Variant())
		}
		b.Memberships = append(b.Memberships, m)
	}

	nCerts, err := expectCountedHeader(s, "Certifications")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nCerts; i++ {
		doc, err := nextBlockDocument(s)
		if err != nil {
			return nil, err
		}
		c, ok := doc.(*Certification)
		if !ok {
			return nil, fmt.Errorf("dubp: expected Certification in block, got %s", doc.Variant())
		}
		b.Certifications = append(b.Certifications, c)
	}

	nRevocations, err := expectCountedHeader(s, "Revocations")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nRevocations; i++ {
		doc, err := nextBlockDocument(s)
		if err != nil {
			return nil, err
		}
		r, ok := doc.(*Revocation)
		if !ok {
			return nil, fmt.Errorf("dubp: expected Revocation in block, got %s", doc.Variant())
		}
		b.Revocations = append(b.Revocations, r)
	}

	nTxs, err := expectCountedHeader(s, "Transactions")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nTxs; i++ {
		doc, err := nextBlockDocument(s)
		if err != nil {
			return nil, err
		}
		tx, ok := doc.(*Transaction)
		if !ok {
			return nil, fmt.Errorf("dubp: expected Transaction in block, got %s", doc.Variant())
		}
		b.Transactions = append(b.Transactions, tx)
	}

	innerHashStr, err := s.expectField("InnerHash", false)
	if err != nil {
		return nil, err
	}
	if b.InnerHash, err = crypto.HashFromHex(innerHashStr); err != nil {
		return nil, err
	}

	nonceStr, err := s.expectField("Nonce", false)
	if err != nil {
		return nil, err
	}
	if b.Nonce, err = strconv.ParseUint(nonceStr, 10, 64); err != nil {
		return nil, fmt.Errorf("dubp: malformed block Nonce %q: %w", nonceStr, err)
	}

	sigLine, ok := s.next()
	if !ok {
		return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<signature>")
	}
	if b.Signature, err = crypto.Base64Decode(sigLine); err != nil {
		return nil, err
	}
	if !s.eof() {
		extra, _ := s.peek()
		return nil, newParseError(s.offset(), s.lineNo(), extra, "<eof>")
	}

	return b, nil
}

// nextBlockDocument consumes one "DocLen:N" header and the N bytes that
// follow it, then parses the embedded document.
func nextBlockDocument(s *lineScanner) (Document, error) {
	n, err := expectCountedHeader(s, "DocLen")
	if err != nil {
		return nil, err
	}
	var collected []byte
	for len(collected) < n {
		line, ok := s.next()
		if !ok {
			return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<document bytes>")
		}
		collected = append(collected, line...)
		collected = append(collected, '\n')
	}
	if len(collected) != n {
		return nil, fmt.Errorf("dubp: block embedded document length mismatch: want %d, got %d", n, len(collected))
	}
	return Parse(collected)
}

func hasFieldPrefix(line, key string) bool {
	prefix := key + ": "
	return len(line) > len(prefix) && line[:len(prefix)] == prefix
}

func expectIntField(s *lineScanner, key string) (int, error) {
	v, err := s.expectField(key, false)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("dubp: malformed %s %q: %w", key, v, err)
	}
	return n, nil
}

func expectInt64Field(s *lineScanner, key string) (int64, error) {
	v, err := s.expectField(key, false)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dubp: malformed %s %q: %w", key, v, err)
	}
	return n, nil
}
