package dubp

import "strings"

// splitTopLevel splits s on every occurrence of sep. The output condition and
// unlock grammars (spec.md §3) have no parenthesised grouping — precedence is
// fixed (&& binds tighter than ||) — so a literal split is unambiguous; no
// leaf ever contains the two-character sequences "&&" or "||" themselves.
func splitTopLevel(s, sep string) []string {
	return strings.Split(s, sep)
}
