package dubp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
)

// CondKind discriminates the nodes of an output condition tree (spec.md §3).
// Equivalence under commutativity/associativity is deliberately NOT
// implemented anywhere in this package: rewriting the tree would change the
// signed bytes, so every Condition is kept exactly as parsed.
type CondKind int

const (
	CondSig CondKind = iota
	CondXhx
	CondCsv
	CondCltv
	CondAnd
	CondOr
)

// Condition is one node of an output's spending condition tree. Leaf nodes
// (Sig/Xhx/Csv/Cltv) populate exactly one payload field; And/Or populate
// Left and Right.
type Condition struct {
	Kind CondKind

	Pubkey    crypto.PublicKey // CondSig
	HashArg   crypto.Hash      // CondXhx
	Seconds   int64            // CondCsv
	Timestamp int64            // CondCltv

	Left, Right *Condition // CondAnd, CondOr
}

// String renders the condition back to its exact textual form. Because the
// grammar has no parentheses (fixed precedence: && over ||), printing
// "Left OP Right" recursively reproduces the original bytes whenever the
// tree was built by ParseCondition.
func (c *Condition) String() string {
	switch c.Kind {
	case CondSig:
		return "SIG(" + crypto.Base58Encode(c.Pubkey) + ")"
	case CondXhx:
		return "XHX(" + c.HashArg.HexUpper() + ")"
	case CondCsv:
		return "CSV(" + strconv.FormatInt(c.Seconds, 10) + ")"
	case CondCltv:
		return "CLTV(" + strconv.FormatInt(c.Timestamp, 10) + ")"
	case CondAnd:
		return c.Left.String() + "&&" + c.Right.String()
	case CondOr:
		return c.Left.String() + "||" + c.Right.String()
	default:
		return "<invalid>"
	}
}

// ErrEmptyConditionArg is returned for a leaf written without its required
// argument (e.g. "SIG()"). spec.md §9 leaves this an open question; this
// engine treats an argument-less leaf as a parse error rather than a legal
// document, since its spending condition would otherwise be unsatisfiable
// or ambiguous (Open Question decision, see DESIGN.md).
var ErrEmptyConditionArg = fmt.Errorf("dubp: output condition leaf missing its argument")

// ParseCondition parses an output condition expression such as
// "SIG(<pubkey>)&&CSV(15724800)".
func ParseCondition(s string) (*Condition, error) {
	return parseCondOr(s)
}

func parseCondOr(s string) (*Condition, error) {
	parts := splitTopLevel(s, "||")
	node, err := parseCondAnd(parts[0])
	if err != nil {
		return nil, err
	}
	for _, p := range parts[1:] {
		right, err := parseCondAnd(p)
		if err != nil {
			return nil, err
		}
		node = &Condition{Kind: CondOr, Left: node, Right: right}
	}
	return node, nil
}

func parseCondAnd(s string) (*Condition, error) {
	parts := splitTopLevel(s, "&&")
	node, err := parseCondLeaf(parts[0])
	if err != nil {
		return nil, err
	}
	for _, p := range parts[1:] {
		right, err := parseCondLeaf(p)
		if err != nil {
			return nil, err
		}
		node = &Condition{Kind: CondAnd, Left: node, Right: right}
	}
	return node, nil
}

func parseCondLeaf(s string) (*Condition, error) {
	name, arg, err := splitLeaf(s)
	if err != nil {
		return nil, err
	}
	switch name {
	case "SIG":
		if arg == "" {
			return nil, ErrEmptyConditionArg
		}
		pk, err := crypto.Base58Decode(arg)
		if err != nil {
			return nil, fmt.Errorf("dubp: SIG() argument: %w", err)
		}
		return &Condition{Kind: CondSig, Pubkey: pk}, nil
	case "XHX":
		if arg == "" {
			return nil, ErrEmptyConditionArg
		}
		h, err := crypto.HashFromHex(arg)
		if err != nil {
			return nil, fmt.Errorf("dubp: XHX() argument: %w", err)
		}
		return &Condition{Kind: CondXhx, HashArg: h}, nil
	case "CSV":
		if arg == "" {
			return nil, ErrEmptyConditionArg
		}
		v, err := parseUInt(arg)
		if err != nil {
			return nil, fmt.Errorf("dubp: CSV() argument: %w", err)
		}
		return &Condition{Kind: CondCsv, Seconds: v}, nil
	case "CLTV":
		if arg == "" {
			return nil, ErrEmptyConditionArg
		}
		v, err := parseUInt(arg)
		if err != nil {
			return nil, fmt.Errorf("dubp: CLTV() argument: %w", err)
		}
		return &Condition{Kind: CondCltv, Timestamp: v}, nil
	default:
		return nil, fmt.Errorf("dubp: unknown output condition leaf %q", name)
	}
}

// splitLeaf parses "NAME(arg)" into ("NAME", "arg").
func splitLeaf(s string) (name, arg string, err error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", "", fmt.Errorf("dubp: malformed condition leaf %q", s)
	}
	return s[:open], s[open+1 : len(s)-1], nil
}
