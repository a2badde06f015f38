package dubp

import "fmt"

// ParseError reports where a document failed to parse and what the grammar
// expected at that position, per spec.md §4.1.
type ParseError struct {
	Position int      // byte offset into the input
	Line     int      // 1-based line number, for human-readable diagnostics
	Expected []string // token(s) the grammar rule expected
	Got      string   // the offending line/token, truncated for readability
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dubp: parse error at line %d (byte %d): expected %v, got %q",
		e.Line, e.Position, e.Expected, e.Got)
}

func newParseError(pos, line int, got string, expected ...string) *ParseError {
	return &ParseError{Position: pos, Line: line, Expected: expected, Got: got}
}

// SignatureError reports which issuer's signature failed to verify. It is
// non-recoverable for the bearing document: the caller drops it (spec.md §7).
type SignatureError struct {
	IssuerIndex int
	Issuer      string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("dubp: signature verification failed for issuer[%d]=%s", e.IssuerIndex, e.Issuer)
}
