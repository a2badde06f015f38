package dubp

import (
	"fmt"

	"github.com/dunitrust/dunitrust/crypto"
)

// MembershipType is IN (join/renew) or OUT (leave) the WoT.
type MembershipType string

const (
	MembershipIn  MembershipType = "IN"
	MembershipOut MembershipType = "OUT"
)

// Membership declares a member's intent to join, renew, or leave the WoT
// (spec.md §3).
type Membership struct {
	Currency  string
	Issuer    crypto.PublicKey
	Block     Blockstamp
	Type      MembershipType
	UserID    UID
	CertTS    Blockstamp
	Signature crypto.Signature
}

func (d *Membership) Variant() Variant               { return VariantMembership }
func (d *Membership) Issuers() []crypto.PublicKey    { return []crypto.PublicKey{d.Issuer} }
func (d *Membership) Signatures() []crypto.Signature { return []crypto.Signature{d.Signature} }

func (d *Membership) CanonicalBytes() []byte {
	return joinLines([]string{
		"Version: 10",
		"Type: Membership",
		"Currency: " + d.Currency,
		"Issuer: " + crypto.Base58Encode(d.Issuer),
		"Block: " + d.Block.String(),
		"Membership: " + string(d.Type),
		"UserID: " + string(d.UserID),
		"CertTS: " + d.CertTS.String(),
	})
}

func parseMembership(data []byte) (*Membership, error) {
	s := newLineScanner(data)
	if err := s.expectLine("Version: 10"); err != nil {
		return nil, err
	}
	if err := s.expectLine("Type: Membership"); err != nil {
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
	blockStr, err := s.expectField("Block", false)
	if err != nil {
		return nil, err
	}
	block, err := ParseBlockstamp(blockStr)
	if err != nil {
		return nil, err
	}
	typeStr, err := s.expectField("Membership", false)
	if err != nil {
		return nil, err
	}
	var mtype MembershipType
	switch typeStr {
	case string(MembershipIn):
		mtype = MembershipIn
	case string(MembershipOut):
		mtype = MembershipOut
	default:
		return nil, fmt.Errorf("dubp: invalid membership type %q", typeStr)
	}
	uidStr, err := s.expectField("UserID", false)
	if err != nil {
		return nil, err
	}
	if err := ValidateUID(uidStr); err != nil {
		return nil, err
	}
	certTSStr, err := s.expectField("CertTS", false)
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
	return &Membership{
		Currency:  currency,
		Issuer:    issuer,
		Block:     block,
		Type:      mtype,
		UserID:    UID(uidStr),
		CertTS:    certTS,
		Signature: sig,
	}, nil
}
