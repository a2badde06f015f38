package dunp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
)

// PeerDocumentVersion is the only DUNP peer document version this codec
// accepts (spec.md §6: "Peer document (v11)").
const PeerDocumentVersion = 11

var nodeIDRe = regexp.MustCompile(`^[0-9a-f]{1,8}$`)

// Peer is a node's self-advertisement: its identity, current chain head,
// and the endpoints it serves (spec.md §6).
type Peer struct {
	Currency  string
	NodeID    string // 1-8 lowercase hex chars
	Pubkey    crypto.PublicKey
	BlockID   int64
	Endpoints []Endpoint
	Signature crypto.Signature
}

// CanonicalBytes returns the peer document's signable bytes: the header
// line plus one line per endpoint, in order, terminated by '\n'.
func (p *Peer) CanonicalBytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s:%s:%s:%d\n", PeerDocumentVersion, p.Currency, p.NodeID, crypto.Base58Encode(p.Pubkey), p.BlockID)
	for _, ep := range p.Endpoints {
		b.WriteString(ep.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Verify checks the peer document's trailing signature against its
// canonical bytes.
func (p *Peer) Verify() error {
	if !crypto.Verify(p.Pubkey, p.CanonicalBytes(), p.Signature) {
		return &VerificationError{Document: "Peer"}
	}
	return nil
}

// ParsePeer parses a full peer-v11 document: header line, zero or more
// endpoint-v2 lines, then a trailing Ed25519 signature line. There is no
// explicit endpoint count in the grammar, so the last line is always the
// signature and every line between the header and it is an endpoint.
func ParsePeer(data []byte) (*Peer, error) {
	raw := string(data)
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("dunp: peer document too short")
	}
	header := strings.Split(lines[0], ":")
	if len(header) != 5 {
		return nil, fmt.Errorf("dunp: malformed peer header %q", lines[0])
	}
	version, err := strconv.Atoi(header[0])
	if err != nil || version != PeerDocumentVersion {
		return nil, fmt.Errorf("dunp: unsupported peer document version %q", header[0])
	}
	currency := header[1]
	nodeID := header[2]
	if !nodeIDRe.MatchString(nodeID) {
		return nil, fmt.Errorf("dunp: invalid node_id %q", nodeID)
	}
	pubkey, err := crypto.Base58Decode(header[3])
	if err != nil {
		return nil, fmt.Errorf("dunp: peer pubkey: %w", err)
	}
	blockID, err := strconv.ParseInt(header[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dunp: peer block_id: %w", err)
	}

	endpointLines := lines[1 : len(lines)-1]
	endpoints := make([]Endpoint, 0, len(endpointLines))
	for i, el := range endpointLines {
		ep, err := ParseEndpoint(el)
		if err != nil {
			return nil, fmt.Errorf("dunp: endpoint %d: %w", i, err)
		}
		endpoints = append(endpoints, ep)
	}

	sig, err := crypto.Base64Decode(lines[len(lines)-1])
	if err != nil {
		return nil, fmt.Errorf("dunp: peer signature: %w", err)
	}

	return &Peer{
		Currency:  currency,
		NodeID:    nodeID,
		Pubkey:    pubkey,
		BlockID:   blockID,
		Endpoints: endpoints,
		Signature: sig,
	}, nil
}

// EncodePeer signs and serializes a peer document, the supplemented emitter
// counterpart to ParsePeer (a reference implementation must be able to
// produce, not only accept, the wire form — spec.md §6).
func EncodePeer(p *Peer, sk crypto.PrivateKey) []byte {
	canon := p.CanonicalBytes()
	sig := crypto.Sign(sk, canon)
	return append(canon, []byte(crypto.Base64Encode(sig)+"\n")...)
}

// VerificationError reports that a DUNP document's signature did not
// verify.
type VerificationError struct {
	Document string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("dunp: %s document signature verification failed", e.Document)
}
