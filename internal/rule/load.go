package rule

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/rmerr"
	"gopkg.in/yaml.v3"
)

type loadState int

const (
	stateUnvisited loadState = iota
	stateInProgress
	stateDone
)

// edgeKind discriminates a rule-graph edge's origin, matching spec §6's
// call-graph document `edges[].kind ∈ {step,branch,body_rule,ref}` (this
// package never emits a bare "step" edge since every outgoing reference
// here is already branch/catch/body_rule-shaped).
type edgeKind string

const (
	edgeBranch   edgeKind = "branch"
	edgeRef      edgeKind = "ref"
	edgeBodyRule edgeKind = "body_rule"
)

// refEdge is one outgoing rule-graph edge, consumed by graph.go's
// BuildGraph to assemble spec §6's call-graph document.
type refEdge struct {
	Target string
	Label  string
	Kind   edgeKind
}

// refsOf enumerates the outgoing rule-graph edges of a parsed document
// (spec §3's rule graph: steps[].rule, branch.then|else, catch.<key>,
// network.body_rule). `branch.then`/`else` is where a step's rule
// reference lives in this AST (see ast.go's Step/Branch shape), so it
// covers "steps[].rule" as well as the branch edges named in spec §3.
func refsOf(r *Rule) []refEdge {
	var edges []refEdge
	walkSteps := func(steps []Step) {
		for _, st := range steps {
			if !st.HasBranch {
				continue
			}
			edges = append(edges, refEdge{Target: st.Branch.Then, Label: "branch: then", Kind: edgeBranch})
			if st.Branch.HasElse {
				edges = append(edges, refEdge{Target: st.Branch.Else, Label: "branch: else", Kind: edgeBranch})
			}
			if st.Branch.HasCatch {
				for k, v := range st.Branch.Catch {
					edges = append(edges, refEdge{Target: v, Label: "catch: " + k, Kind: edgeRef})
				}
			}
		}
	}
	if r.HasSteps {
		walkSteps(r.Steps)
	}
	if r.Endpoint != nil {
		walkSteps(r.Endpoint.Steps)
		for k, v := range r.Endpoint.Catch {
			edges = append(edges, refEdge{Target: v, Label: "catch: " + k, Kind: edgeRef})
		}
	}
	if r.Network != nil {
		if r.Network.HasBodyRule {
			edges = append(edges, refEdge{Target: r.Network.BodyRule, Label: "body_rule", Kind: edgeBodyRule})
		}
		for k, v := range r.Network.Catch {
			edges = append(edges, refEdge{Target: v, Label: "catch: " + k, Kind: edgeRef})
		}
	}
	return edges
}

// Loader parses a rule file and its transitive call graph, rejecting
// cycles at load time (spec §4.3/§9) instead of at evaluation time.
//
// Rulemorph's call graph must never contain a cycle, so a three-color
// DFS that raises a ValidationError on the first back-edge is both
// correct and simpler than computing full strongly-connected
// components — there is no need to enumerate every cycle once the
// graph is going to be rejected outright.
type Loader struct {
	Root string
	Reg  *pipe.Registry

	docs  map[string]*Rule
	state map[string]loadState
	order []string
}

func NewLoader(root string, reg *pipe.Registry) *Loader {
	return &Loader{Root: root, Reg: reg, docs: map[string]*Rule{}, state: map[string]loadState{}}
}

// Load parses entryPath and its full transitive closure of referenced
// rule files, running Validate on each. It returns every rule loaded
// (keyed by absolute, cleaned path) and the union of all diagnostics.
// Per spec §7, only a ValidationError at load time aborts execution;
// callers should refuse to evaluate against a Loader whose diagnostics
// are non-empty.
func (l *Loader) Load(entryPath string) (map[string]*Rule, []*rmerr.RuleError, error) {
	if l.Root != "" {
		if info, err := os.Stat(l.Root); err != nil || !info.IsDir() {
			return nil, nil, fmt.Errorf("loader root %q is not a directory", l.Root)
		}
	}

	var diags []*rmerr.RuleError
	stack := map[string]string{} // path -> parent path, for cycle reconstruction

	var walk func(path, parent string)
	walk = func(path, parent string) {
		norm := l.normalize(path)
		switch l.state[norm] {
		case stateInProgress:
			diags = append(diags, rmerr.New(rmerr.CodeValidationError, "", "cycle detected in rule graph: "+l.reconstructCycle(stack, parent, norm)))
			return
		case stateDone:
			return
		}
		l.state[norm] = stateInProgress
		stack[norm] = parent

		data, err := os.ReadFile(norm)
		if err != nil {
			diags = append(diags, rmerr.Wrap(rmerr.CodeValidationError, "", fmt.Sprintf("cannot read rule file %s: %v", norm, err), err))
			l.state[norm] = stateDone
			return
		}

		var raw map[string]any
		if yaml.Unmarshal(data, &raw) == nil && raw != nil {
			if serr := CheckSchema(raw); serr != nil {
				diags = append(diags, rmerr.Wrap(rmerr.CodeValidationError, "", serr.Error(), serr))
			}
		}

		r, err := ParseBytes(data)
		if err != nil {
			diags = append(diags, rmerr.Wrap(rmerr.CodeParseError, "", err.Error(), err))
			l.state[norm] = stateDone
			return
		}
		r.Path = norm
		l.docs[norm] = r
		l.order = append(l.order, norm)

		for _, d := range Validate(r, l.Reg) {
			d.Rule = norm
			diags = append(diags, d)
		}

		dir := filepath.Dir(norm)
		for _, e := range refsOf(r) {
			if e.Target == "" {
				continue
			}
			target := e.Target
			if !filepath.IsAbs(target) {
				target = filepath.Join(dir, target)
			}
			walk(target, norm)
		}

		l.state[norm] = stateDone
		delete(stack, norm)
	}

	walk(entryPath, "")
	if len(diags) == 0 {
		slog.Info("loaded rule graph", "entry", entryPath, "documents", len(l.docs))
	}
	return l.docs, diags, nil
}

func (l *Loader) normalize(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(l.Root, path))
}

func (l *Loader) reconstructCycle(stack map[string]string, from, to string) string {
	chain := []string{to}
	cur := from
	for cur != "" {
		chain = append(chain, cur)
		if cur == to {
			break
		}
		cur = stack[cur]
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	out := chain[0]
	for _, p := range chain[1:] {
		out += " -> " + p
	}
	return out
}
