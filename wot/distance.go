package wot

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DistanceOutcome is the result of a distance rule evaluation (spec.md
// §4.4: "distance(node, sentries, step_max, x_percent) → Ok | TooFar").
type DistanceOutcome int

const (
	DistanceOK DistanceOutcome = iota
	DistanceTooFar
)

func (o DistanceOutcome) String() string {
	if o == DistanceOK {
		return "Ok"
	}
	return "TooFar"
}

type distanceKey string

func makeDistanceKey(node NodeId, sentries []NodeId, stepMax int, xPercent float64) distanceKey {
	sorted := make([]NodeId, len(sentries))
	copy(sorted, sentries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%f|", node, stepMax, xPercent)
	for _, s := range sorted {
		fmt.Fprintf(&b, "%d,", s)
	}
	return distanceKey(b.String())
}

// Distance runs a breadth-first search from node out to step_max hops
// (following certifications in either direction, since a candidate may be
// reached by a vouching chain regardless of who certified whom) and
// reports Ok iff at least x_percent * |sentries| distinct sentries were
// reached (spec.md §4.4).
func (g *Graph) Distance(node NodeId, sentries []NodeId, stepMax int, xPercent float64) (DistanceOutcome, error) {
	g.mu.RLock()
	if node < 0 || int(node) >= len(g.nodes) {
		g.mu.RUnlock()
		return DistanceTooFar, fmt.Errorf("wot: node %d does not exist", node)
	}
	g.mu.RUnlock()

	key := makeDistanceKey(node, sentries, stepMax, xPercent)
	if v, ok := g.distanceCache.Get(key); ok {
		return v.(DistanceOutcome), nil
	}

	sentrySet := make(map[NodeId]bool, len(sentries))
	for _, s := range sentries {
		sentrySet[s] = true
	}

	reached := g.bfsReachable(node, stepMax)

	reachedSentries := 0
	for n := range reached {
		if sentrySet[n] {
			reachedSentries++
		}
	}

	required := int(math.Ceil(xPercent * float64(len(sentries))))
	outcome := DistanceTooFar
	if reachedSentries >= required {
		outcome = DistanceOK
	}
	g.distanceCache.Add(key, outcome)
	return outcome, nil
}

// bfsReachable returns every node reachable from start within stepMax
// hops, excluding start itself.
func (g *Graph) bfsReachable(start NodeId, stepMax int) map[NodeId]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[NodeId]bool{start: true}
	reached := map[NodeId]bool{}
	frontier := []NodeId{start}

	for hop := 0; hop < stepMax && len(frontier) > 0; hop++ {
		var next []NodeId
		for _, n := range frontier {
			if int(n) >= len(g.nodes) {
				continue
			}
			neighbors := append(append([]NodeId{}, g.nodes[n].out...), g.nodes[n].in...)
			for _, nb := range neighbors {
				if !visited[nb] {
					visited[nb] = true
					reached[nb] = true
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}
	return reached
}
