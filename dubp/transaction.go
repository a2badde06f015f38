package dubp

import (
	"fmt"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
)

// InputKind distinguishes a UD redemption source from a spent transaction
// output, per spec.md §3's two Input wire forms.
type InputKind int

const (
	// InputSourceUD is "amount:base:D:pubkey:du_block_id".
	InputSourceUD InputKind = iota
	// InputSourceTx is "amount:base:T:tx_hash:output_index".
	InputSourceTx
)

// Input is one funding source consumed by a Transaction.
type Input struct {
	Amount Amount
	Kind   InputKind

	// InputSourceUD
	UDIssuer  crypto.PublicKey
	UDBlockID int64
	// InputSourceTx
	TxHash      crypto.Hash
	OutputIndex int64
}

func (in Input) String() string {
	switch in.Kind {
	case InputSourceUD:
		return fmt.Sprintf("%d:%d:D:%s:%d", in.Amount.Value, in.Amount.Base, crypto.Base58Encode(in.UDIssuer), in.UDBlockID)
	case InputSourceTx:
		return fmt.Sprintf("%d:%d:T:%s:%d", in.Amount.Value, in.Amount.Base, in.TxHash.HexUpper(), in.OutputIndex)
	default:
		return "<invalid>"
	}
}

// ParseInput parses either Input wire form.
func ParseInput(s string) (Input, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 {
		return Input{}, fmt.Errorf("dubp: malformed input %q", s)
	}
	value, err := parseUInt(parts[0])
	if err != nil {
		return Input{}, fmt.Errorf("dubp: input amount: %w", err)
	}
	base, err := parseUInt(parts[1])
	if err != nil || base > 255 {
		return Input{}, fmt.Errorf("dubp: input base: %w", err)
	}
	amount := Amount{Value: value, Base: uint8(base)}
	switch parts[2] {
	case "D":
		pk, err := crypto.Base58Decode(parts[3])
		if err != nil {
			return Input{}, fmt.Errorf("dubp: input D pubkey: %w", err)
		}
		blockID, err := parseUInt(parts[4])
		if err != nil {
			return Input{}, fmt.Errorf("dubp: input D block id: %w", err)
		}
		return Input{Amount: amount, Kind: InputSourceUD, UDIssuer: pk, UDBlockID: blockID}, nil
	case "T":
		h, err := crypto.HashFromHex(parts[3])
		if err != nil {
			return Input{}, fmt.Errorf("dubp: input T hash: %w", err)
		}
		idx, err := parseUInt(parts[4])
		if err != nil {
			return Input{}, fmt.Errorf("dubp: input T output index: %w", err)
		}
		return Input{Amount: amount, Kind: InputSourceTx, TxHash: h, OutputIndex: idx}, nil
	default:
		return Input{}, fmt.Errorf("dubp: unknown input source kind %q", parts[2])
	}
}

// Output binds an amount to a spending Condition tree.
type Output struct {
	Amount    Amount
	Condition *Condition
}

func (o Output) String() string {
	return fmt.Sprintf("%d:%d:%s", o.Amount.Value, o.Amount.Base, o.Condition.String())
}

// ParseOutput parses "amount:base:CONDITION".
func ParseOutput(s string) (Output, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Output{}, fmt.Errorf("dubp: malformed output %q", s)
	}
	value, err := parseUInt(parts[0])
	if err != nil {
		return Output{}, fmt.Errorf("dubp: output amount: %w", err)
	}
	base, err := parseUInt(parts[1])
	if err != nil || base > 255 {
		return Output{}, fmt.Errorf("dubp: output base: %w", err)
	}
	cond, err := ParseCondition(parts[2])
	if err != nil {
		return Output{}, err
	}
	return Output{Amount: Amount{Value: value, Base: uint8(base)}, Condition: cond}, nil
}

// MaxCommentLength is the upper bound on a Transaction's free-text comment
// (spec.md §3: "comment ≤255 chars").
const MaxCommentLength = 255

// Transaction moves funds between spending conditions, possibly co-signed
// by several issuers (spec.md §3): (currency, blockstamp, locktime,
// issuers[], inputs[], unlocks[], outputs[], comment, sigs[]).
type Transaction struct {
	Currency  string
	Block     Blockstamp
	Locktime  int64
	IssuerPKs []crypto.PublicKey
	Inputs    []Input
	Unlocks   []Unlock
	Outputs   []Output
	Comment   string
	Sigs      []crypto.Signature
}

func (d *Transaction) Variant() Variant               { return VariantTransaction }
func (d *Transaction) Issuers() []crypto.PublicKey    { return d.IssuerPKs }
func (d *Transaction) Signatures() []crypto.Signature { return d.Sigs }

func (d *Transaction) CanonicalBytes() []byte {
	lines := []string{
		"Version: 10",
		"Type: Transaction",
		"Currency: " + d.Currency,
		"Blockstamp: " + d.Block.String(),
		"Locktime: " + fmt.Sprint(d.Locktime),
		"Issuers:" + fmt.Sprint(len(d.IssuerPKs)),
	}
	for _, pk := range d.IssuerPKs {
		lines = append(lines, crypto.Base58Encode(pk))
	}
	lines = append(lines, "Inputs:"+fmt.Sprint(len(d.Inputs)))
	for _, in := range d.Inputs {
		lines = append(lines, in.String())
	}
	lines = append(lines, "Unlocks:"+fmt.Sprint(len(d.Unlocks)))
	for _, u := range d.Unlocks {
		lines = append(lines, u.String())
	}
	lines = append(lines, "Outputs:"+fmt.Sprint(len(d.Outputs)))
	for _, o := range d.Outputs {
		lines = append(lines, o.String())
	}
	lines = append(lines, "Comment: "+d.Comment)
	return joinLines(lines)
}

// expectCountedHeader parses a "Key:N" line (no space before N, unlike the
// "Key: value" fields) and returns N.
func expectCountedHeader(s *lineScanner, key string) (int, error) {
	line, ok := s.next()
	if !ok {
		return 0, newParseError(s.offset(), s.lineNo(), "<eof>", key+":N")
	}
	prefix := key + ":"
	if !strings.HasPrefix(line, prefix) {
		return 0, newParseError(s.offset()-len(line)-1, s.lineNo(), line, key+":N")
	}
	n, err := parseUInt(line[len(prefix):])
	if err != nil {
		return 0, fmt.Errorf("dubp: %s count: %w", key, err)
	}
	return int(n), nil
}

func parseTransaction(data []byte) (*Transaction, error) {
	s := newLineScanner(data)
	if err := s.expectLine("Version: 10"); err != nil {
		return nil, err
	}
	if err := s.expectLine("Type: Transaction"); err != nil {
		return nil, err
	}
	currency, err := s.expectField("Currency", false)
	if err != nil {
		return nil, err
	}
	blockStr, err := s.expectField("Blockstamp", false)
	if err != nil {
		return nil, err
	}
	block, err := ParseBlockstamp(blockStr)
	if err != nil {
		return nil, err
	}
	locktimeStr, err := s.expectField("Locktime", false)
	if err != nil {
		return nil, err
	}
	locktime, err := parseUInt(locktimeStr)
	if err != nil {
		return nil, fmt.Errorf("dubp: locktime: %w", err)
	}

	nIssuers, err := expectCountedHeader(s, "Issuers")
	if err != nil {
		return nil, err
	}
	issuers := make([]crypto.PublicKey, 0, nIssuers)
	for i := 0; i < nIssuers; i++ {
		line, ok := s.next()
		if !ok {
			return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<issuer pubkey>")
		}
		pk, err := crypto.Base58Decode(line)
		if err != nil {
			return nil, fmt.Errorf("dubp: issuer %d: %w", i, err)
		}
		issuers = append(issuers, pk)
	}

	nInputs, err := expectCountedHeader(s, "Inputs")
	if err != nil {
		return nil, err
	}
	inputs := make([]Input, 0, nInputs)
	for i := 0; i < nInputs; i++ {
		line, ok := s.next()
		if !ok {
			return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<input>")
		}
		in, err := ParseInput(line)
		if err != nil {
			return nil, fmt.Errorf("dubp: input %d: %w", i, err)
		}
		inputs = append(inputs, in)
	}

	nUnlocks, err := expectCountedHeader(s, "Unlocks")
	if err != nil {
		return nil, err
	}
	unlocks := make([]Unlock, 0, nUnlocks)
	for i := 0; i < nUnlocks; i++ {
		line, ok := s.next()
		if !ok {
			return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<unlock>")
		}
		u, err := ParseUnlock(line)
		if err != nil {
			return nil, fmt.Errorf("dubp: unlock %d: %w", i, err)
		}
		unlocks = append(unlocks, u)
	}

	nOutputs, err := expectCountedHeader(s, "Outputs")
	if err != nil {
		return nil, err
	}
	outputs := make([]Output, 0, nOutputs)
	for i := 0; i < nOutputs; i++ {
		line, ok := s.next()
		if !ok {
			return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<output>")
		}
		o, err := ParseOutput(line)
		if err != nil {
			return nil, fmt.Errorf("dubp: output %d: %w", i, err)
		}
		outputs = append(outputs, o)
	}

	comment, err := s.expectField("Comment", true)
	if err != nil {
		return nil, err
	}
	if len(comment) > MaxCommentLength {
		return nil, fmt.Errorf("dubp: comment exceeds %d characters", MaxCommentLength)
	}

	sigs := make([]crypto.Signature, 0, nIssuers)
	for i := 0; i < nIssuers; i++ {
		line, ok := s.next()
		if !ok {
			return nil, newParseError(s.offset(), s.lineNo(), "<eof>", "<signature>")
		}
		sig, err := crypto.Base64Decode(line)
		if err != nil {
			return nil, fmt.Errorf("dubp: signature %d: %w", i, err)
		}
		sigs = append(sigs, sig)
	}
	if !s.eof() {
		extra, _ := s.peek()
		return nil, newParseError(s.offset(), s.lineNo(), extra, "<eof>")
	}

	return &Transaction{
		Currency:  currency,
		Block:     block,
		Locktime:  locktime,
		IssuerPKs: issuers,
		Inputs:    inputs,
		Unlocks:   unlocks,
		Outputs:   outputs,
		Comment:   comment,
		Sigs:      sigs,
	}, nil
}
