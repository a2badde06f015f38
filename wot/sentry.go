package wot

import "math"

type sentryKey struct {
	node NodeId
	yMin int
}

// SentryThreshold computes y_min = ceil(N^(1/stepMax)), the minimum
// in-degree and out-degree a sentry must hold (spec.md §4.4).
func SentryThreshold(memberCount, stepMax int) int {
	if memberCount <= 1 || stepMax <= 0 {
		return 0
	}
	y := math.Ceil(math.Pow(float64(memberCount), 1/float64(stepMax)))
	return int(y)
}

// IsSentry reports whether node qualifies as a sentry: in-degree and
// out-degree both at least yMin (spec.md §4.4).
func (g *Graph) IsSentry(node NodeId, yMin int) bool {
	key := sentryKey{node: node, yMin: yMin}
	if v, ok := g.sentryCache.Get(key); ok {
		return v.(bool)
	}
	result := g.InDegree(node) >= yMin && g.OutDegree(node) >= yMin
	g.sentryCache.Add(key, result)
	return result
}

// Sentries returns every enabled node currently meeting the sentry
// threshold for the current enabled-member count and the given stepMax.
func (g *Graph) Sentries(stepMax int) []NodeId {
	g.mu.RLock()
	n := len(g.nodes)
	enabled := make([]bool, n)
	for i, a := range g.nodes {
		enabled[i] = a.enabled
	}
	g.mu.RUnlock()

	memberCount := 0
	for _, e := range enabled {
		if e {
			memberCount++
		}
	}
	yMin := SentryThreshold(memberCount, stepMax)

	var sentries []NodeId
	for i, e := range enabled {
		if !e {
			continue
		}
		id := NodeId(i)
		if g.IsSentry(id, yMin) {
			sentries = append(sentries, id)
		}
	}
	return sentries
}
