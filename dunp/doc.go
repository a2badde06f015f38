// Package dunp implements the DUNP (Duniter Network Protocol) gossip
// documents this engine consumes and emits: the peer record (v11), its
// embedded endpoint descriptors (v2), and the HEAD status message (v3)
// (spec.md §6). Only the document-level messages are modeled here — the
// WS2P wire transport they traverse is out of scope (spec.md §1 Non-goals).
package dunp
