// Package dubp implements the DUBP (Duniter Blockchain Protocol) document
// grammar and codec: Identity, Membership, Certification, Revocation, and
// Transaction documents (spec.md §3–4.1). Every variant exposes the same
// three operations: Parse, CanonicalBytes, Verify.
package dubp

import (
	"fmt"

	"github.com/dunitrust/dunitrust/crypto"
)

// Variant identifies which DUBP document grammar applies.
type Variant string

const (
	VariantIdentity      Variant = "Identity"
	VariantMembership    Variant = "Membership"
	VariantCertification Variant = "Certification"
	VariantRevocation    Variant = "Revocation"
	VariantTransaction   Variant = "Transaction"

	// VariantBlock is not dispatched through Parse: a Block is not one of
	// the five inner-document grammars and has its own ParseBlock/EncodeBlock
	// pair (spec.md §3 "Block").
	VariantBlock Variant = "Block"
)

// DocumentVersion is the only DUBP version this codec accepts.
const DocumentVersion = 10

// Document is implemented by every DUBP document type. CanonicalBytes
// returns exactly what was signed (spec.md §4.1): the document re-emitted
// deterministically with its signature line(s) stripped and a trailing '\n'.
type Document interface {
	Variant() Variant
	CanonicalBytes() []byte
	Issuers() []crypto.PublicKey
	Signatures() []crypto.Signature
}

// Verify recomputes a document's signable bytes and checks every declared
// signature against it, short-circuiting on the first failure (spec.md
// §4.1: "rejects if any fails").
func Verify(doc Document) error {
	msg := doc.CanonicalBytes()
	issuers := doc.Issuers()
	sigs := doc.Signatures()
	if len(issuers) != len(sigs) {
		return fmt.Errorf("dubp: document has %d issuers but %d signatures", len(issuers), len(sigs))
	}
	for i := range issuers {
		if !crypto.Verify(issuers[i], msg, sigs[i]) {
			return &SignatureError{IssuerIndex: i, Issuer: crypto.Base58Encode(issuers[i])}
		}
	}
	return nil
}

// Parse dispatches on the document's "Type:" line after verifying the
// mandatory "Version: 10" header (spec.md §4.1: "the grammar begins with a
// lookahead on 'Version: 10\n' then selects variant by the 'Type:' line").
func Parse(data []byte) (Document, error) {
	s := newLineScanner(data)
	if err := s.expectLine(fmt.Sprintf("Version: %d", DocumentVersion)); err != nil {
		return nil, err
	}
	typeLine, ok := s.peek()
	if !ok {
		return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "Type: ...")
	}
	const prefix = "Type: "
	if len(typeLine) <= len(prefix) || typeLine[:len(prefix)] != prefix {
		return nil, newParseError(s.offset(), s.lineNo(), typeLine, "Type: ...")
	}
	variant := Variant(typeLine[len(prefix):])
	switch variant {
	case VariantIdentity:
		return parseIdentity(data)
	case VariantMembership:
		return parseMembership(data)
	case VariantCertification:
		return parseCertification(data)
	case VariantRevocation:
		return parseRevocation(data)
	case VariantTransaction:
		return parseTransaction(data)
	default:
		return nil, newParseError(s.offset(), s.lineNo(), string(variant),
			"Identity", "Membership", "Certification", "Revocation", "Transaction")
	}
}

// encodeDocument re-emits a document's canonical bytes followed by one
// Base64 signature line per declared signature, i.e. its full wire form as
// it would appear standalone. Used to embed inner documents inside a Block
// (spec.md §3 "Block").
func encodeDocument(d Document) []byte {
	out := append([]byte{}, d.CanonicalBytes()...)
	for _, sig := range d.Signatures() {
		out = append(out, crypto.Base64Encode(sig)...)
		out = append(out, '\n')
	}
	return out
}

// joinLines re-emits a sequence of body lines terminated uniformly by '\n',
// the canonical form spec.md §4.1 requires ("a trailing \n").
func joinLines(lines []string) []byte {
	out := make([]byte, 0, 64*len(lines))
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
	}
	return out
}
