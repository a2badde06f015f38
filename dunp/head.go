package dunp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
	"github.com/dunitrust/dunitrust/dubp"
)

// HeadDocumentVersion is the only DUNP HEAD document version this codec
// accepts (spec.md §6: "HEAD v3").
const HeadDocumentVersion = 3

// Head is a node's current-status gossip message: chain position, software
// identity, and remaining connection room (spec.md §6).
type Head struct {
	Currency        string
	APIOut          int64
	APIIn           int64
	FreeMemberRooms int64
	FreeMirrorRooms int64
	NodeID          string
	Pubkey          crypto.PublicKey
	Blockstamp      dubp.Blockstamp
	Software        string
	SoftVersion     string
	Signature       crypto.Signature

	// HasStep reports whether an optional trailing "step" line was present.
	// spec.md §9 leaves its exact semantics an open question; this engine
	// treats it as an opaque, optional gossip-hop counter (see DESIGN.md).
	HasStep bool
	Step    int64
}

// headerLine returns the signable first line only (without the trailing
// newline), used both for signing and for re-emission.
func (h *Head) headerLine() string {
	return fmt.Sprintf("%d:%s:%d:%d:%d:%d:%s:%s:%s:%s:%s",
		HeadDocumentVersion, h.Currency, h.APIOut, h.APIIn,
		h.FreeMemberRooms, h.FreeMirrorRooms, h.NodeID,
		crypto.Base58Encode(h.Pubkey), h.Blockstamp.String(), h.Software, h.SoftVersion)
}

// CanonicalBytes returns the HEAD message's signable bytes: the header line
// terminated by '\n'. The signature and optional step line are not part of
// the signed content (spec.md §6: "+ newline + signature + optional step").
func (h *Head) CanonicalBytes() []byte {
	return []byte(h.headerLine() + "\n")
}

// Verify checks the HEAD message's signature against its canonical bytes.
func (h *Head) Verify() error {
	if !crypto.Verify(h.Pubkey, h.CanonicalBytes(), h.Signature) {
		return &VerificationError{Document: "HEAD"}
	}
	return nil
}

// ParseHead parses a HEAD-v3 message.
func ParseHead(data []byte) (*Head, error) {
	raw := string(data)
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 2 || len(lines) > 3 {
		return nil, fmt.Errorf("dunp: malformed HEAD message: expected 2 or 3 lines, got %d", len(lines))
	}
	fields := strings.Split(lines[0], ":")
	if len(fields) != 11 {
		return nil, fmt.Errorf("dunp: malformed HEAD header %q", lines[0])
	}
	version, err := strconv.Atoi(fields[0])
	if err != nil || version != HeadDocumentVersion {
		return nil, fmt.Errorf("dunp: unsupported HEAD document version %q", fields[0])
	}
	apiOut, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dunp: HEAD api_out: %w", err)
	}
	apiIn, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dunp: HEAD api_in: %w", err)
	}
	freeMember, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dunp: HEAD free_member_rooms: %w", err)
	}
	freeMirror, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dunp: HEAD free_mirror_rooms: %w", err)
	}
	nodeID := fields[6]
	if !nodeIDRe.MatchString(nodeID) {
		return nil, fmt.Errorf("dunp: invalid HEAD node_id %q", nodeID)
	}
	pubkey, err := crypto.Base58Decode(fields[7])
	if err != nil {
		return nil, fmt.Errorf("dunp: HEAD pubkey: %w", err)
	}
	blockstamp, err := dubp.ParseBlockstamp(fields[8])
	if err != nil {
		return nil, fmt.Errorf("dunp: HEAD blockstamp: %w", err)
	}

	sig, err := crypto.Base64Decode(lines[1])
	if err != nil {
		return nil, fmt.Errorf("dunp: HEAD signature: %w", err)
	}

	h := &Head{
		Currency:        fields[1],
		APIOut:          apiOut,
		APIIn:           apiIn,
		FreeMemberRooms: freeMember,
		FreeMirrorRooms: freeMirror,
		NodeID:          nodeID,
		Pubkey:          pubkey,
		Blockstamp:      blockstamp,
		Software:        fields[9],
		SoftVersion:     fields[10],
		Signature:       sig,
	}
	if len(lines) == 3 {
		step, err := strconv.ParseInt(lines[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dunp: HEAD step: %w", err)
		}
		h.HasStep = true
		h.Step = step
	}
	return h, nil
}

// EncodeHead signs and serializes a HEAD message, the supplemented emitter
// counterpart to ParseHead.
func EncodeHead(h *Head, sk crypto.PrivateKey) []byte {
	canon := h.CanonicalBytes()
	sig := crypto.Sign(sk, canon)
	out := append(canon, []byte(crypto.Base64Encode(sig))...)
	if h.HasStep {
		out = append(out, []byte("\n"+strconv.FormatInt(h.Step, 10))...)
	}
	return out
}
