package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/99souls/routingcore/engine/telemetry/metrics"
	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
	"github.com/99souls/routingcore/internal/helpers"
	"github.com/99souls/routingcore/internal/routererr"
)

// stageComposer maps a stage name to the Node constructor combining its
// sibling asset expressions, per §4.4's table:
//
//	decoders -> first-match (Or)
//	rules    -> broadcast (Broadcast)
//	outputs  -> chain (Chain)
var stageComposer = map[string]func(name string, children ...expr.Node) expr.Node{
	"decoders": func(name string, children ...expr.Node) expr.Node { return expr.NewOr(name, children...) },
	"rules":    func(name string, children ...expr.Node) expr.Node { return expr.NewBroadcast(name, children...) },
	"outputs":  func(name string, children ...expr.Node) expr.Node { return expr.NewChain(name, children...) },
}

// Compiled is the output of compiling a policy: its expression root, the
// set of asset names it referenced, and a stable content hash.
type Compiled struct {
	Root      expr.Node
	AssetSet  map[string]struct{}
	Hash      string
}

// Compiler resolves policy/filter names into Compiled artifacts.
type Compiler struct {
	Loader   DocumentLoader
	Registry *helpers.Registry

	// Metrics is optional; a nil value disables instrumentation entirely.
	Metrics *metrics.RouterMetrics
}

func NewCompiler(loader DocumentLoader, registry *helpers.Registry) *Compiler {
	return &Compiler{Loader: loader, Registry: registry}
}

// CompilePolicy implements §4.4: load the policy, extract stages, resolve
// asset dependencies, compile each asset, compose per-stage, compute the
// content hash.
func (c *Compiler) CompilePolicy(ctx context.Context, name string) (compiled *Compiled, err error) {
	start := time.Now()
	defer func() {
		if c.Metrics == nil {
			return
		}
		c.Metrics.PolicyCompileDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			c.Metrics.PolicyCompileFailures.Inc(1)
		}
	}()

	doc, err := c.Loader.LoadPolicy(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(doc.Stages) == 0 {
		return nil, routererr.New(routererr.CompileError, fmt.Sprintf("policy %q has no stages", name))
	}

	assetSet := make(map[string]struct{})
	assetDocs := make(map[string]*AssetDoc)
	graph := newAssetGraph()

	var loadAsset func(assetName string) error
	loadAsset = func(assetName string) error {
		if _, ok := assetDocs[assetName]; ok {
			return nil
		}
		ad, err := c.Loader.LoadAsset(ctx, assetName)
		if err != nil {
			return err
		}
		assetDocs[assetName] = ad
		assetSet[assetName] = struct{}{}
		graph.addEdge(assetName, ad.Parents)
		for _, parent := range ad.Parents {
			if err := loadAsset(parent); err != nil {
				return err
			}
		}
		return nil
	}

	for _, stage := range doc.Stages {
		for _, assetName := range stage.Assets {
			if err := loadAsset(assetName); err != nil {
				return nil, err
			}
		}
	}

	order, err := graph.topoOrder()
	if err != nil {
		return nil, err
	}

	compiledAssets := make(map[string]expr.Node, len(order))
	for _, assetName := range order {
		ad := assetDocs[assetName]
		node, err := c.compileAsset(ad)
		if err != nil {
			return nil, routererr.Wrapf(routererr.CompileError, err, "compile asset %q", assetName)
		}
		compiledAssets[assetName] = node
	}

	var stageExprs []expr.Node
	for _, stage := range doc.Stages {
		composer, ok := stageComposer[stage.Name]
		if !ok {
			return nil, routererr.New(routererr.CompileError, fmt.Sprintf("unknown stage kind %q", stage.Name))
		}
		children := make([]expr.Node, 0, len(stage.Assets))
		for _, assetName := range stage.Assets {
			children = append(children, compiledAssets[assetName])
		}
		stageExprs = append(stageExprs, composer(stage.Name, children...))
	}

	root := expr.Node(expr.NewChain("policy:"+name, stageExprs...))
	hash := hashTree(root)

	return &Compiled{Root: root, AssetSet: assetSet, Hash: hash}, nil
}

// CompileFilter compiles a single filter asset and returns its root
// expression directly — filters are single assets, so the same asset
// compiler is reused rather than duplicated (§4.6 step 4).
func (c *Compiler) CompileFilter(ctx context.Context, name string) (expr.Node, error) {
	ad, err := c.Loader.LoadAsset(ctx, name)
	if err != nil {
		return nil, err
	}
	node, err := c.compileAsset(ad)
	if err != nil {
		return nil, routererr.Wrapf(routererr.CompileError, err, "compile filter %q", name)
	}
	return node, nil
}

// compileAsset builds Implication(check, Chain(transforms)) per §4.4 step
// 4. An asset with no transforms returns its check expression directly;
// one with no check clauses (pure transform asset, e.g. an output) is
// treated as an always-true antecedent so its transforms still run.
func (c *Compiler) compileAsset(ad *AssetDoc) (expr.Node, error) {
	checkNode, err := c.compileClauses(ad.Name+":check", ad.Check, true)
	if err != nil {
		return nil, err
	}
	transformClauses := append(append([]string{}, ad.Normalize...), ad.Map...)
	transformNode, err := c.compileClauses(ad.Name+":transform", transformClauses, false)
	if err != nil {
		return nil, err
	}

	if len(transformClauses) == 0 {
		return checkNode, nil
	}
	if len(ad.Check) == 0 {
		return expr.NewImplication(ad.Name, alwaysTrue(ad.Name+":check"), transformNode), nil
	}
	return expr.NewImplication(ad.Name, checkNode, transformNode), nil
}

// compileClauses compiles a list of DSL clause lines into a single node:
// And-composed when isCheck (all must hold), Chain-composed otherwise
// (sequential transforms, outcome ignored).
func (c *Compiler) compileClauses(name string, clauses []string, isCheck bool) (expr.Node, error) {
	if len(clauses) == 0 {
		return alwaysTrue(name), nil
	}
	terms := make([]expr.Node, 0, len(clauses))
	for _, line := range clauses {
		clause, err := parseClause(line)
		if err != nil {
			return nil, err
		}
		term, err := c.Registry.Build(clause.Target, clause.Helper, clause.Args)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	if isCheck {
		return expr.NewAnd(name, terms...), nil
	}
	return expr.NewChain(name, terms...), nil
}

// alwaysTrue is a Term that always succeeds without touching the event,
// used as a synthetic antecedent for assets with no check clauses.
func alwaysTrue(name string) *expr.Term {
	return expr.NewTerm(name, func(ev *document.Event) document.Result {
		return document.Success(ev)
	})
}

// hashTree computes SHA-256 over a deterministic serialization of the
// compiled tree (node kind, name, children in order) — the same
// canonical-JSON-then-sha256 approach VersionedStore.Append uses for its
// config hash, applied here to the expression tree instead of a config
// spec.
func hashTree(root expr.Node) string {
	repr := serializeNode(root)
	data, _ := json.Marshal(repr)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type nodeRepr struct {
	Kind     string     `json:"kind"`
	Name     string     `json:"name"`
	Children []nodeRepr `json:"children,omitempty"`
}

type childrenNode interface {
	Children() []expr.Node
}

func serializeNode(n expr.Node) nodeRepr {
	kind := "Term"
	switch n.(type) {
	case *expr.And:
		kind = "And"
	case *expr.Or:
		kind = "Or"
	case *expr.Chain:
		kind = "Chain"
	case *expr.Broadcast:
		kind = "Broadcast"
	case *expr.Implication:
		kind = "Implication"
	}
	repr := nodeRepr{Kind: kind, Name: n.Name()}
	if cn, ok := n.(childrenNode); ok {
		repr.Children = serializeChildren(cn.Children())
	}
	return repr
}

func serializeChildren(children []expr.Node) []nodeRepr {
	out := make([]nodeRepr, len(children))
	for i, c := range children {
		out[i] = serializeNode(c)
	}
	return out
}

// sortedKeys is a small helper used by callers that need a deterministic
// iteration order over an asset set.
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
