package dubp

import (
	"github.com/dunitrust/dunitrust/crypto"
)

// Revocation permanently withdraws an identity from the WoT (spec.md §3):
// (currency, issuer, uid, idty timestamp, idty signature, sig). It is
// self-signed: Issuer is the identity's own pubkey.
type Revocation struct {
	Currency      string
	Issuer        crypto.PublicKey
	IdtyUniqueID  UID
	IdtyTimestamp Blockstamp
	IdtySignature crypto.Signature
	Signature     crypto.Signature
}

func (d *Revocation) Variant() Variant               { return VariantRevocation }
func (d *Revocation) Issuers() []crypto.PublicKey    { return []crypto.PublicKey{d.Issuer} }
func (d *Revocation) Signatures() []crypto.Signature { return []crypto.Signature{d.Signature} }

func (d *Revocation) CanonicalBytes() []byte {
	return joinLines([]string{
		"Version: 10",
		"Type: Revocation",
		"Currency: " + d.Currency,
		"Issuer: " + crypto.Base58Encode(d.Issuer),
		"IdtyUniqueID: " + string(d.IdtyUniqueID),
		"IdtyTimestamp: " + d.IdtyTimestamp.String(),
		"IdtySignature: " + crypto.Base64Encode(d.IdtySignature),
	})
}

func parseRevocation(data []byte) (*Revocation, error) {
	s := newLineScanner(data)
	if err := s.expectLine("Version: 10"); err != nil {
		return nil, err
	}
	if err := s.expectLine("Type: Revocation"); err != nil {
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
	uidStr, err := s.expectField("IdtyUniqueID", false)
	if err != nil {
		return nil, err
	}
	if err := ValidateUID(uidStr); err != nil {
		return nil, err
	}
	idtyTSStr, err := s.expectField("IdtyTimestamp", false)
	if err != nil {
		return nil, err
	}
	idtyTS, err := ParseBlockstamp(idtyTSStr)
	if err != nil {
		return nil, err
	}
	idtySigStr, err := s.expectField("IdtySignature", false)
	if err != nil {
		return nil, err
	}
	idtySig, err := crypto.Base64Decode(idtySigStr)
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
	return &Revocation{
		Currency:      currency,
		Issuer:        issuer,
		IdtyUniqueID:  UID(uidStr),
		IdtyTimestamp: idtyTS,
		IdtySignature: idtySig,
		Signature:     sig,
	}, nil
}
