package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopoOrderParentsBeforeChildren(t *testing.T) {
	g := newAssetGraph()
	g.addEdge("rule/alert", []string{"decoder/json"})
	g.addEdge("decoder/json", nil)
	g.addEdge("output/file", nil)

	order, err := g.topoOrder()
	require.NoError(t, err)

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["decoder/json"], pos["rule/alert"])
}

func TestTopoOrderDetectsSelfCycle(t *testing.T) {
	g := newAssetGraph()
	g.addEdge("a", []string{"a"})

	_, err := g.topoOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> a")
}

func TestTopoOrderDetectsIndirectCycle(t *testing.T) {
	g := newAssetGraph()
	g.addEdge("a", []string{"b"})
	g.addEdge("b", []string{"c"})
	g.addEdge("c", []string{"a"})

	_, err := g.topoOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
