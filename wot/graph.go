// Package wot implements the Web-of-Trust directed certification graph
// (spec.md §4.4, C4): nodes are opaque stable integers, edges are
// certifications held as values rather than references so the graph can
// hold arbitrary directed cycles without any owning/borrowing machinery
// (spec.md §9 REDESIGN FLAGS: "Graph cycles (WoT)").
package wot

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// NodeId is an opaque, stable vertex identifier. Removing a node never
// reuses its id within the same process run (spec.md §4.4).
type NodeId int32

type adjacency struct {
	out     []NodeId
	in      []NodeId
	enabled bool
}

// Graph is the in-memory WoT: vertices are members, edges are live
// certifications. Writes go through validation.Registry, which replays
// the GraphOps of accepted blocks; readers
// work against an immutable Snapshot (spec.md §5: "WoT graph: single
// writer... readers via snapshot").
type Graph struct {
	mu    sync.RWMutex
	nodes []adjacency

	sentryCache   *lru.ARCCache
	distanceCache *lru.ARCCache
}

// DefaultMemoCacheSize bounds the sentry/distance query caches. Both are
// pure functions of graph state, so any size is merely a performance
// tradeoff.
const DefaultMemoCacheSize = 4096

// NewGraph returns an empty WoT graph.
func NewGraph() *Graph {
	sentryCache, _ := lru.NewARC(DefaultMemoCacheSize)
	distanceCache, _ := lru.NewARC(DefaultMemoCacheSize)
	return &Graph{sentryCache: sentryCache, distanceCache: distanceCache}
}

// AddNode appends a new enabled vertex and returns its id.
func (g *Graph) AddNode() NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := NodeId(len(g.nodes))
	g.nodes = append(g.nodes, adjacency{enabled: true})
	g.invalidateLocked()
	return id
}

// Disable marks a vertex as non-enabled. Its id is never reused, and its
// existing edges are left in place — a disabled node may still be
// referenced by certifications whose expiry is tracked elsewhere (CINDEX).
func (g *Graph) Disable(node NodeId) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkNodeLocked(node); err != nil {
		return err
	}
	g.nodes[node].enabled = false
	g.invalidateLocked()
	return nil
}

func (g *Graph) checkNodeLocked(node NodeId) error {
	if node < 0 || int(node) >= len(g.nodes) {
		return fmt.Errorf("wot: node %d does not exist", node)
	}
	return nil
}

// AddLink records a live certification from -> to. Both endpoints must
// already exist. Edge slices are replaced wholesale rather than mutated in
// place, so any Snapshot taken before this call keeps seeing the prior
// adjacency (copy-on-write, spec.md §4.4: "exposes a read-only snapshot by
// copy-on-write per block write").
func (g *Graph) AddLink(from, to NodeId) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkNodeLocked(from); err != nil {
		return err
	}
	if err := g.checkNodeLocked(to); err != nil {
		return err
	}
	g.nodes[from].out = appendCopy(g.nodes[from].out, to)
	g.nodes[to].in = appendCopy(g.nodes[to].in, from)
	g.invalidateLocked()
	return nil
}

// RemoveLink drops a previously recorded certification, e.g. on expiry or
// chain rewind.
func (g *Graph) RemoveLink(from, to NodeId) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkNodeLocked(from); err != nil {
		return err
	}
	if err := g.checkNodeLocked(to); err != nil {
		return err
	}
	g.nodes[from].out = removeCopy(g.nodes[from].out, to)
	g.nodes[to].in = removeCopy(g.nodes[to].in, from)
	g.invalidateLocked()
	return nil
}

func appendCopy(s []NodeId, v NodeId) []NodeId {
	out := make([]NodeId, len(s)+1)
	copy(out, s)
	out[len(s)] = v
	return out
}

func removeCopy(s []NodeId, v NodeId) []NodeId {
	out := make([]NodeId, 0, len(s))
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// InDegree and OutDegree report a node's live certification counts.
func (g *Graph) InDegree(node NodeId) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if node < 0 || int(node) >= len(g.nodes) {
		return 0
	}
	return len(g.nodes[node].in)
}

func (g *Graph) OutDegree(node NodeId) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if node < 0 || int(node) >= len(g.nodes) {
		return 0
	}
	return len(g.nodes[node].out)
}

// MemberCount returns the number of currently enabled vertices, the N used
// by the sentry threshold formula (spec.md §4.4).
func (g *Graph) MemberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, a := range g.nodes {
		if a.enabled {
			n++
		}
	}
	return n
}

func (g *Graph) invalidateLocked() {
	g.sentryCache.Purge()
	g.distanceCache.Purge()
}

// Snapshot returns an independent, read-only view of the graph as it
// stands right now. Because every mutator above replaces rather than
// mutates edge slices, the copy below only needs to copy the outer
// adjacency-list header, not each node's edges (spec.md §4.4 copy-on-write).
func (g *Graph) Snapshot() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := make([]adjacency, len(g.nodes))
	copy(nodes, g.nodes)
	sentryCache, _ := lru.NewARC(DefaultMemoCacheSize)
	distanceCache, _ := lru.NewARC(DefaultMemoCacheSize)
	return &Graph{nodes: nodes, sentryCache: sentryCache, distanceCache: distanceCache}
}
