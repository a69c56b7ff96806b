package policy

import (
	"fmt"
	"strings"

	"github.com/99souls/routingcore/internal/routererr"
)

// color marks a node's DFS visitation state for cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS stack
	black              // fully processed
)

// graphNode is one asset in the arena, referenced by integer index rather
// than by name during traversal — the "arena of nodes with integer
// indices, cycle detection via coloring DFS" shape the design notes call
// for.
type graphNode struct {
	name    string
	parents []int
}

// assetGraph resolves a set of root asset names (plus everything they
// transitively depend on via Parents) into topological order, failing
// with the offending asset names on any cycle.
type assetGraph struct {
	index map[string]int
	nodes []*graphNode
}

func newAssetGraph() *assetGraph {
	return &assetGraph{index: make(map[string]int)}
}

func (g *assetGraph) indexOf(name string) int {
	if idx, ok := g.index[name]; ok {
		return idx
	}
	idx := len(g.nodes)
	g.index[name] = idx
	g.nodes = append(g.nodes, &graphNode{name: name})
	return idx
}

func (g *assetGraph) addEdge(asset string, parents []string) {
	idx := g.indexOf(asset)
	for _, p := range parents {
		g.nodes[idx].parents = append(g.nodes[idx].parents, g.indexOf(p))
	}
}

// topoOrder returns asset names in dependency order (a parent always
// precedes its children), or a COMPILE_ERROR naming the cycle if one
// exists.
func (g *assetGraph) topoOrder() ([]string, error) {
	colors := make([]color, len(g.nodes))
	var order []string
	var stack []string

	var visit func(i int) error
	visit = func(i int) error {
		switch colors[i] {
		case black:
			return nil
		case gray:
			stack = append(stack, g.nodes[i].name)
			return routererr.New(routererr.CompileError, fmt.Sprintf("asset dependency cycle: %s", strings.Join(stack, " -> ")))
		}
		colors[i] = gray
		stack = append(stack, g.nodes[i].name)
		for _, p := range g.nodes[i].parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		colors[i] = black
		order = append(order, g.nodes[i].name)
		return nil
	}

	for i := range g.nodes {
		if colors[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}
