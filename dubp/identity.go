package dubp

import (
	"github.com/dunitrust/dunitrust/crypto"
)

// Identity binds a pubkey to a chosen user-visible UID at a point in time
// (spec.md §3).
type Identity struct {
	Currency  string
	Issuer    crypto.PublicKey
	UniqueID  UID
	Timestamp Blockstamp
	Signature crypto.Signature
}

func (d *Identity) Variant() Variant              { return VariantIdentity }
func (d *Identity) Issuers() []crypto.PublicKey   { return []crypto.PublicKey{d.Issuer} }
func (d *Identity) Signatures() []crypto.Signature { return []crypto.Signature{d.Signature} }

func (d *Identity) CanonicalBytes() []byte {
	return joinLines([]string{
		"Version: 10",
		"Type: Identity",
		"Currency: " + d.Currency,
		"Issuer: " + crypto.Base58Encode(d.Issuer),
		"UniqueID: " + string(d.UniqueID),
		"Timestamp: " + d.Timestamp.String(),
	})
}

func parseIdentity(data []byte) (*Identity, error) {
	s := newLineScanner(data)
	if err := s.expectLine("Version: 10"); err != nil {
		return nil, err
	}
	if err := s.expectLine("Type: Identity"); err != nil {
		return nil, err
	}
	currency, err := s.expectField("Currency", false)
	if err != nil {
		return nil, err
	}
	issuerStr, err := s.expectField("Issuer", false)
	if err != nil {
		return nil, err
	}
	issuer, err := crypto.Base58Decode(issuerStr)
	if err != nil {
		return nil, err
	}
	uidStr, err := s.expectField("UniqueID", false)
	if err != nil {
		return nil, err
	}
	if err := ValidateUID(uidStr); err != nil {
		return nil, err
	}
	tsStr, err := s.expectField("Timestamp", false)
	if err != nil {
		return nil, err
	}
	ts, err := ParseBlockstamp(tsStr)
	if err != nil {
		return nil, err
	}
	sigLine, ok := s.next()
	if !ok {
		return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<signature>")
	}
	sig, err := crypto.Base64Decode(sigLine)
	if err != nil {
		return nil, err
	}
	if !s.eof() {
		extra, _ := s.peek()
		return nil, newParseError(s.offset(), s.lineNo(), extra, "<eof>")
	}
	return &Identity{
		Currency:  currency,
		Issuer:    issuer,
		UniqueID:  UID(uidStr),
		Timestamp: ts,
		Signature: sig,
	}, nil
}
