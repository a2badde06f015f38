package dubp

import (
	"github.com/dunitrust/dunitrust/crypto"
)

// Certification records one member vouching for another's identity
// (spec.md §3): (currency, certifier, certified pubkey, certified uid,
// certified timestamp, certified-idty-signature, certTimestamp, sig).
type Certification struct {
	Currency      string
	Certifier     crypto.PublicKey
	IdtyIssuer    crypto.PublicKey
	IdtyUniqueID  UID
	IdtyTimestamp Blockstamp
	IdtySignature crypto.Signature
	CertTimestamp Blockstamp
	Signature     crypto.Signature
}

func (d *Certification) Variant() Variant               { return VariantCertification }
func (d *Certification) Issuers() []crypto.PublicKey    { return []crypto.PublicKey{d.Certifier} }
func (d *Certification) Signatures() []crypto.Signature { return []crypto.Signature{d.Signature} }

func (d *Certification) CanonicalBytes() []byte {
	return joinLines([]string{
		"Version: 10",
		"Type: Certification",
		"Currency: " + d.Currency,
		"Issuer: " + crypto.Base58Encode(d.Certifier),
		"IdtyIssuer: " + crypto.Base58Encode(d.IdtyIssuer),
		"IdtyUniqueID: " + string(d.IdtyUniqueID),
		"IdtyTimestamp: " + d.IdtyTimestamp.String(),
		"IdtySignature: " + crypto.Base64Encode(d.IdtySignature),
		"CertTimestamp: " + d.CertTimestamp.String(),
	})
}

func parseCertification(data []byte) (*Certification, error) {
	s := newLineScanner(data)
	if err := s.expectLine("Version: 10"); err != nil {
		return nil, err
	}
	if err := s.expectLine("Type: Certification"); err != nil {
		return nil, err
	}
	currency, err := s.expectField("Currency", false)
	if err != nil {
		return nil, err
	}
	certifierStr, err := s.expectField("Issuer", false)
	if err != nil {
		return nil, err
	}
	certifier, err := crypto.Base58Decode(certifierStr)
	if err != nil {
		return nil, err
	}
	idtyIssuerStr, err := s.expectField("IdtyIssuer", false)
	if err != nil {
		return nil, err
	}
	idtyIssuer, err := crypto.Base58Decode(idtyIssuerStr)
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
	certTSStr, err := s.expectField("CertTimestamp", false)
	if err != nil {
		return nil, err
	}
	certTS, err := ParseBlockstamp(certTSStr)
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
	return &Certification{
		Currency:      currency,
		Certifier:     certifier,
		IdtyIssuer:    idtyIssuer,
		IdtyUniqueID:  UID(uidStr),
		IdtyTimestamp: idtyTS,
		IdtySignature: idtySig,
		CertTimestamp: certTS,
		Signature:     sig,
	}, nil
}
