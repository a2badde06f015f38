package dubp

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dunitrust/dunitrust/crypto"
)

// Blockstamp is the pair (block_number, block_hash) spec.md §3 uses to pin a
// document to a specific point in the chain, textually "N-HHHH...".
type Blockstamp struct {
	Number uint32
	Hash   crypto.Hash
}

func (b Blockstamp) String() string {
	return fmt.Sprintf("%d-%s", b.Number, b.Hash.HexUpper())
}

var blockstampRe = regexp.MustCompile(`^(0|[1-9][0-9]*)-([0-9A-F]{64})$`)

// ParseBlockstamp parses the textual "N-HHHH..." form, enforcing the u_int
// policy (spec.md §4.1: no leading zeros except the literal "0").
func ParseBlockstamp(s string) (Blockstamp, error) {
	m := blockstampRe.FindStringSubmatch(s)
	if m == nil {
		return Blockstamp{}, fmt.Errorf("dubp: malformed blockstamp %q", s)
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return Blockstamp{}, fmt.Errorf("dubp: blockstamp number out of range: %w", err)
	}
	h, err := crypto.HashFromHex(m[2])
	if err != nil {
		return Blockstamp{}, err
	}
	return Blockstamp{Number: uint32(n), Hash: h}, nil
}

// UID is a user-visible identity string: ASCII-alpha start, then
// [A-Za-z0-9_-]*, per spec.md §3.
type UID string

var uidRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func ValidateUID(s string) error {
	if !uidRe.MatchString(s) {
		return fmt.Errorf("dubp: invalid uid %q", s)
	}
	return nil
}

// Amount is (value, base) with effective units = value * 10^base, per
// spec.md §3.
type Amount struct {
	Value int64
	Base  uint8
}

func (a Amount) String() string { return fmt.Sprintf("%d:%d", a.Value, a.Base) }

// Normalized returns the amount's value after raising it to base 0, i.e.
// value * 10^base, used by the balance-equality rule (spec.md §3 invariant 5).
// Errors on overflow rather than silently wrapping.
func (a Amount) Normalized() (int64, error) {
	v := a.Value
	for i := uint8(0); i < a.Base; i++ {
		next := v * 10
		if v != 0 && next/10 != v {
			return 0, errors.New("dubp: amount overflow during base normalization")
		}
		v = next
	}
	return v, nil
}

// parseUInt enforces spec.md §4.1's numeric policy: "0" or a digit run with
// no leading zero.
func parseUInt(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("dubp: empty integer")
	}
	if !isAllDigits(s) {
		return 0, fmt.Errorf("dubp: invalid u_int %q (non-digit)", s)
	}
	if s != "0" && s[0] == '0' {
		return 0, fmt.Errorf("dubp: invalid u_int %q (leading zero)", s)
	}
	return strconv.ParseInt(s, 10, 64)
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseAmount parses the "value:base" wire form of an Amount.
func ParseAmount(s string) (Amount, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Amount{}, fmt.Errorf("dubp: malformed amount %q", s)
	}
	v, err := parseUInt(parts[0])
	if err != nil {
		return Amount{}, err
	}
	base, err := parseUInt(parts[1])
	if err != nil || base > 255 {
		return Amount{}, fmt.Errorf("dubp: malformed amount base in %q", s)
	}
	return Amount{Value: v, Base: uint8(base)}, nil
}
