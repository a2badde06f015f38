package wot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starGraph(t *testing.T, spokes int) (*Graph, NodeId, []NodeId) {
	t.Helper()
	g := NewGraph()
	center := g.AddNode()
	leaves := make([]NodeId, spokes)
	for i := 0; i < spokes; i++ {
		leaves[i] = g.AddNode()
		require.NoError(t, g.AddLink(center, leaves[i]))
		require.NoError(t, g.AddLink(leaves[i], center))
	}
	return g, center, leaves
}

func TestAddLinkUpdatesDegrees(t *testing.T) {
	g, center, leaves := starGraph(t, 3)
	assert.Equal(t, 3, g.OutDegree(center))
	assert.Equal(t, 3, g.InDegree(center))
	assert.Equal(t, 1, g.OutDegree(leaves[0]))
}

func TestRemoveLinkUpdatesDegrees(t *testing.T) {
	g, center, leaves := starGraph(t, 3)
	require.NoError(t, g.RemoveLink(center, leaves[0]))
	assert.Equal(t, 2, g.OutDegree(center))
	assert.Equal(t, 0, g.InDegree(leaves[0]))
}

func TestSnapshotIsolatesFromLaterWrites(t *testing.T) {
	g, center, _ := starGraph(t, 2)
	snap := g.Snapshot()
	require.Equal(t, 2, snap.OutDegree(center))

	extra := g.AddNode()
	require.NoError(t, g.AddLink(center, extra))

	assert.Equal(t, 3, g.OutDegree(center))
	assert.Equal(t, 2, snap.OutDegree(center), "snapshot must not observe writes made after it was taken")
}

func TestSentryThresholdFormula(t *testing.T) {
	assert.Equal(t, 0, SentryThreshold(1, 5))
	assert.Equal(t, 2, SentryThreshold(9, 5))  // ceil(9^(1/5)) = ceil(1.55) = 2
	assert.Equal(t, 2, SentryThreshold(2, 5))  // ceil(2^(1/5)) = ceil(1.149) = 2
	assert.Equal(t, 0, SentryThreshold(0, 5))
}

func TestIsSentryHighDegreeHub(t *testing.T) {
	g, center, _ := starGraph(t, 5)
	yMin := SentryThreshold(g.MemberCount(), 5)
	assert.True(t, g.IsSentry(center, yMin))
}

func TestIsSentryLowDegreeLeafIsNot(t *testing.T) {
	g, _, leaves := starGraph(t, 5)
	yMin := SentryThreshold(g.MemberCount(), 5)
	if yMin > 1 {
		assert.False(t, g.IsSentry(leaves[0], yMin))
	}
}

func TestDistanceReachesAllSentriesInStar(t *testing.T) {
	g, center, leaves := starGraph(t, 4)
	candidate := g.AddNode()
	require.NoError(t, g.AddLink(candidate, center))
	require.NoError(t, g.AddLink(center, candidate))

	// candidate -> center (hop 1) -> every leaf (hop 2): all 4 sentries reached.
	outcome, err := g.Distance(candidate, leaves, 2, 1.0)
	require.NoError(t, err)
	assert.Equal(t, DistanceOK, outcome)
}

func TestDistanceTooFarWhenUnreachable(t *testing.T) {
	g := NewGraph()
	isolated := g.AddNode()
	sentry := g.AddNode()

	outcome, err := g.Distance(isolated, []NodeId{sentry}, 3, 1.0)
	require.NoError(t, err)
	assert.Equal(t, DistanceTooFar, outcome)
}

func TestDistancePartialQuorumMeetsLowerXPercent(t *testing.T) {
	g := NewGraph()
	candidate := g.AddNode()
	reachable := g.AddNode()
	unreachable := g.AddNode()
	require.NoError(t, g.AddLink(candidate, reachable))

	outcome, err := g.Distance(candidate, []NodeId{reachable, unreachable}, 1, 0.5)
	require.NoError(t, err)
	assert.Equal(t, DistanceOK, outcome)
}

func TestDistanceUnknownNodeErrors(t *testing.T) {
	g := NewGraph()
	_, err := g.Distance(NodeId(99), nil, 3, 1.0)
	assert.Error(t, err)
}

func TestDisabledNodeExcludedFromMemberCount(t *testing.T) {
	g, center, leaves := starGraph(t, 2)
	before := g.MemberCount()
	require.NoError(t, g.Disable(leaves[0]))
	assert.Equal(t, before-1, g.MemberCount())
	// disabling does not retract existing edges
	assert.Equal(t, 2, g.OutDegree(center))
}
