package rule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/rmerr"
	"github.com/rulemorph/rulemorph/internal/value"
	"gopkg.in/yaml.v3"
)

var compareOps = map[string]pipe.CompareOp{
	"eq": pipe.OpEq, "==": pipe.OpEq,
	"ne": pipe.OpNe, "!=": pipe.OpNe,
	"gt": pipe.OpGt, ">": pipe.OpGt,
	"gte": pipe.OpGte, ">=": pipe.OpGte,
	"lt": pipe.OpLt, "<": pipe.OpLt,
	"lte": pipe.OpLte, "<=": pipe.OpLte,
	"match": pipe.OpMatch, "~=": pipe.OpMatch,
}

// ParseBytes parses a single rule document. Failures here are syntax
// failures (bad YAML, malformed pipeline/condition shorthand) — the
// ParseError kind of spec §7. Semantic checks (mutual exclusivity,
// unknown ops, cycles) belong to Validate and the loader.
func ParseBytes(data []byte) (*Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, rmerr.Wrap(rmerr.CodeParseError, "", "invalid YAML", err)
	}
	if len(doc.Content) == 0 {
		return nil, rmerr.New(rmerr.CodeParseError, "", "empty rule document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, rmerr.New(rmerr.CodeParseError, "", "rule document must be a mapping")
	}

	r := &Rule{}
	r.Type = Kind(getFieldString(root, "type", "normal"))
	r.Version = getFieldInt(root, "version", 0)

	switch r.Type {
	case KindEndpoint:
		ep, err := parseEndpoint(root)
		if err != nil {
			return nil, rmerr.Wrap(rmerr.CodeParseError, "", err.Error(), err)
		}
		r.Endpoint = ep
	case KindNetwork:
		nr, err := parseNetwork(root)
		if err != nil {
			return nil, rmerr.Wrap(rmerr.CodeParseError, "", err.Error(), err)
		}
		r.Network = nr
	case KindNormal, "":
		r.Type = KindNormal
		if inputNode := getFieldNode(root, "input"); inputNode != nil {
			spec, err := parseInputSpec(inputNode)
			if err != nil {
				return nil, rmerr.Wrap(rmerr.CodeParseError, "/input", err.Error(), err)
			}
			r.Input = spec
		}
		if mn := getFieldNode(root, "mappings"); mn != nil {
			ms, err := parseMappings(mn, "/mappings")
			if err != nil {
				return nil, rmerr.Wrap(rmerr.CodeParseError, "/mappings", err.Error(), err)
			}
			r.HasMappings = true
			r.Mappings = ms
		}
		if sn := getFieldNode(root, "steps"); sn != nil {
			ss, err := parseSteps(sn, "/steps")
			if err != nil {
				return nil, rmerr.Wrap(rmerr.CodeParseError, "/steps", err.Error(), err)
			}
			r.HasSteps = true
			r.Steps = ss
		}
		if rw := getFieldNode(root, "record_when"); rw != nil {
			c, err := parseCondition(rw)
			if err != nil {
				return nil, rmerr.Wrap(rmerr.CodeParseError, "/record_when", err.Error(), err)
			}
			r.HasRecordWhen = true
			r.RecordWhen = c
		}
	default:
		return nil, rmerr.New(rmerr.CodeParseError, "/type", fmt.Sprintf("unknown rule type %q", r.Type))
	}

	if fn := getFieldNode(root, "finalize"); fn != nil {
		f, err := parseFinalize(fn)
		if err != nil {
			return nil, rmerr.Wrap(rmerr.CodeParseError, "/finalize", err.Error(), err)
		}
		r.HasFinalize = true
		r.Finalize = f
	}
	if on := getFieldNode(root, "output"); on != nil {
		r.HasOutput = true
		r.Output = parseOutput(on)
	}

	return r, nil
}

// --- YAML node helpers ---

func getFieldNode(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func getFieldString(n *yaml.Node, key, def string) string {
	f := getFieldNode(n, key)
	if f == nil {
		return def
	}
	return f.Value
}

func getFieldBool(n *yaml.Node, key string, def bool) bool {
	f := getFieldNode(n, key)
	if f == nil {
		return def
	}
	b, err := strconv.ParseBool(f.Value)
	if err != nil {
		return def
	}
	return b
}

func getFieldInt(n *yaml.Node, key string, def int) int {
	f := getFieldNode(n, key)
	if f == nil {
		return def
	}
	i, err := strconv.Atoi(f.Value)
	if err != nil {
		return def
	}
	return i
}

func posOf(n *yaml.Node, path string) Position {
	return Position{Line: n.Line, Column: n.Column, Path: path}
}

// nodeToValue converts an arbitrary YAML node into a literal Value,
// used for mapping `value`/`default` fields and other purely literal
// positions (as opposed to expression atoms, see parseAtom).
func nodeToValue(n *yaml.Node) (value.Value, error) {
	if n == nil {
		return value.MissingValue, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return scalarToValue(n)
	case yaml.SequenceNode:
		arr := make(value.Array, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeToValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		obj := value.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeToValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(n.Content[i].Value, v)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported YAML node kind %v", n.Kind)
}

func scalarToValue(n *yaml.Node) (value.Value, error) {
	switch n.Tag {
	case "!!null":
		return value.NullValue, nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, err
		}
		return value.Bool(b), nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, err
		}
		return value.Int(i), nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, err
		}
		return value.Float(f), nil
	default:
		return value.String(n.Value), nil
	}
}

// --- expression parsing ---

// parseAtom parses a pipeline start or a bare (non-list) argument.
func parseAtom(n *yaml.Node) (pipe.Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!str" {
			s := n.Value
			switch {
			case s == "$":
				return pipe.Current{}, nil
			case strings.HasPrefix(s, "@"):
				return pipe.Ref{Path: s}, nil
			case strings.HasPrefix(s, "lit:"):
				return pipe.Literal{Value: value.String(strings.TrimPrefix(s, "lit:"))}, nil
			default:
				return pipe.Literal{Value: value.String(s)}, nil
			}
		}
		v, err := scalarToValue(n)
		if err != nil {
			return nil, err
		}
		return pipe.Literal{Value: v}, nil
	case yaml.MappingNode, yaml.SequenceNode:
		v, err := nodeToValue(n)
		if err != nil {
			return nil, err
		}
		return pipe.Literal{Value: v}, nil
	}
	return nil, fmt.Errorf("unsupported node kind for expression atom")
}

// parsePipeline parses a full (start, steps...) pipeline, encoded as a
// YAML list whose first element is the start and remainder are steps,
// or as a single bare atom (a pipeline with no steps).
func parsePipeline(n *yaml.Node) (pipe.Pipeline, error) {
	if n == nil {
		return pipe.Pipeline{}, fmt.Errorf("missing pipeline")
	}
	if n.Kind != yaml.SequenceNode {
		start, err := parseAtom(n)
		if err != nil {
			return pipe.Pipeline{}, err
		}
		return pipe.Pipeline{Start: start}, nil
	}
	if len(n.Content) == 0 {
		return pipe.Pipeline{Start: pipe.Current{}}, nil
	}
	start, err := parseAtom(n.Content[0])
	if err != nil {
		return pipe.Pipeline{}, err
	}
	steps := make([]pipe.Step, 0, len(n.Content)-1)
	for _, sn := range n.Content[1:] {
		st, err := parseStep(sn)
		if err != nil {
			return pipe.Pipeline{}, err
		}
		steps = append(steps, st)
	}
	return pipe.Pipeline{Start: start, Steps: steps}, nil
}

func parseArgList(n *yaml.Node) ([]pipe.Pipeline, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		p, err := parsePipeline(n)
		if err != nil {
			return nil, err
		}
		return []pipe.Pipeline{p}, nil
	}
	out := make([]pipe.Pipeline, 0, len(n.Content))
	for _, c := range n.Content {
		p, err := parsePipeline(c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseStep(n *yaml.Node) (pipe.Step, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return pipe.OpStep{Name: n.Value}, nil
	case yaml.MappingNode:
		if v := getFieldNode(n, "op"); v != nil {
			args, err := parseArgList(getFieldNode(n, "args"))
			if err != nil {
				return nil, err
			}
			return pipe.OpStep{Name: v.Value, Args: args}, nil
		}
		if v := getFieldNode(n, "let"); v != nil {
			bindings, err := parseLetBindings(v)
			if err != nil {
				return nil, err
			}
			return pipe.LetStep{Bindings: bindings}, nil
		}
		if v := getFieldNode(n, "if"); v != nil {
			return parseIfStep(v)
		}
		if v := getFieldNode(n, "map"); v != nil {
			body, err := parsePipeline(v)
			if err != nil {
				return nil, err
			}
			return pipe.MapStep{Body: body}, nil
		}
		if len(n.Content) == 2 {
			args, err := parseArgList(n.Content[1])
			if err != nil {
				return nil, err
			}
			return pipe.OpStep{Name: n.Content[0].Value, Args: args}, nil
		}
		return nil, fmt.Errorf("unrecognized step shape")
	}
	return nil, fmt.Errorf("unsupported step node kind")
}

func parseLetBindings(n *yaml.Node) ([]pipe.LetBinding, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("let bindings must be a mapping")
	}
	out := make([]pipe.LetBinding, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		p, err := parsePipeline(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, pipe.LetBinding{Name: n.Content[i].Value, Expr: p})
	}
	return out, nil
}

func parseIfStep(n *yaml.Node) (pipe.Step, error) {
	condNode := getFieldNode(n, "cond")
	thenNode := getFieldNode(n, "then")
	if condNode == nil || thenNode == nil {
		return nil, fmt.Errorf("if step requires cond and then")
	}
	c, err := parseCondition(condNode)
	if err != nil {
		return nil, err
	}
	thenP, err := parsePipeline(thenNode)
	if err != nil {
		return nil, err
	}
	step := pipe.IfStep{Cond: c, Then: thenP}
	if elseNode := getFieldNode(n, "else"); elseNode != nil {
		elseP, err := parsePipeline(elseNode)
		if err != nil {
			return nil, err
		}
		step.Else = &elseP
	}
	return step, nil
}

func parseCondition(n *yaml.Node) (pipe.Condition, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) < 2 {
		return nil, fmt.Errorf("condition must be a single-key mapping")
	}
	key := n.Content[0].Value
	val := n.Content[1]
	switch key {
	case "all":
		children, err := parseConditionList(val)
		if err != nil {
			return nil, err
		}
		return pipe.All{Children: children}, nil
	case "any":
		children, err := parseConditionList(val)
		if err != nil {
			return nil, err
		}
		return pipe.Any{Children: children}, nil
	}
	op, ok := compareOps[key]
	if !ok {
		return nil, fmt.Errorf("unknown condition operator %q", key)
	}
	if val.Kind != yaml.SequenceNode || len(val.Content) != 2 {
		return nil, fmt.Errorf("comparison %q requires a 2-element list", key)
	}
	lhs, err := parsePipeline(val.Content[0])
	if err != nil {
		return nil, err
	}
	rhs, err := parsePipeline(val.Content[1])
	if err != nil {
		return nil, err
	}
	return pipe.Compare{Op: op, Lhs: lhs, Rhs: rhs}, nil
}

func parseConditionList(n *yaml.Node) ([]pipe.Condition, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list of conditions")
	}
	out := make([]pipe.Condition, 0, len(n.Content))
	for _, c := range n.Content {
		cc, err := parseCondition(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, nil
}

// --- document-shape parsing ---

func parseMapping(n *yaml.Node, jsonPath string) (Mapping, error) {
	m := Mapping{Pos: posOf(n, jsonPath)}
	m.Target = getFieldString(n, "target", "")
	if src := getFieldNode(n, "source"); src != nil {
		m.HasSource = true
		m.Source = src.Value
	}
	if val := getFieldNode(n, "value"); val != nil {
		v, err := nodeToValue(val)
		if err != nil {
			return m, err
		}
		m.HasValue = true
		m.Value = v
	}
	if ex := getFieldNode(n, "expr"); ex != nil {
		p, err := parsePipeline(ex)
		if err != nil {
			return m, err
		}
		m.HasExpr = true
		m.Expr = p
	}
	m.Type = getFieldString(n, "type", "")
	m.Required = getFieldBool(n, "required", false)
	if def := getFieldNode(n, "default"); def != nil {
		v, err := nodeToValue(def)
		if err != nil {
			return m, err
		}
		m.HasDefault = true
		m.Default = v
	}
	if when := getFieldNode(n, "when"); when != nil {
		c, err := parseCondition(when)
		if err != nil {
			return m, err
		}
		m.HasWhen = true
		m.When = c
	}
	return m, nil
}

func parseMappings(n *yaml.Node, basePath string) ([]Mapping, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s must be a list", basePath)
	}
	out := make([]Mapping, 0, len(n.Content))
	for i, c := range n.Content {
		m, err := parseMapping(c, fmt.Sprintf("%s/%d", basePath, i))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func parseAsserts(n *yaml.Node, basePath string) ([]Assert, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s must be a list", basePath)
	}
	out := make([]Assert, 0, len(n.Content))
	for i, c := range n.Content {
		whenNode := getFieldNode(c, "when")
		if whenNode == nil {
			return nil, fmt.Errorf("%s/%d missing when", basePath, i)
		}
		w, err := parseCondition(whenNode)
		if err != nil {
			return nil, err
		}
		errNode := getFieldNode(c, "error")
		out = append(out, Assert{
			When:    w,
			Code:    getFieldString(errNode, "code", ""),
			Message: getFieldString(errNode, "message", ""),
			Pos:     posOf(c, fmt.Sprintf("%s/%d", basePath, i)),
		})
	}
	return out, nil
}

func parseBranch(n *yaml.Node, path string) (Branch, error) {
	b := Branch{Pos: posOf(n, path)}
	whenNode := getFieldNode(n, "when")
	if whenNode == nil {
		return b, fmt.Errorf("%s missing when", path)
	}
	w, err := parseCondition(whenNode)
	if err != nil {
		return b, err
	}
	b.When = w
	thenNode := getFieldNode(n, "then")
	if thenNode == nil {
		return b, fmt.Errorf("%s missing then", path)
	}
	b.Then = thenNode.Value
	if elseNode := getFieldNode(n, "else"); elseNode != nil {
		b.HasElse = true
		b.Else = elseNode.Value
	}
	b.Return = getFieldBool(n, "return", false)
	if cn := getFieldNode(n, "catch"); cn != nil {
		b.HasCatch = true
		b.Catch = parseCatch(cn)
	}
	return b, nil
}

func parseSteps(n *yaml.Node, basePath string) ([]Step, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s must be a list", basePath)
	}
	out := make([]Step, 0, len(n.Content))
	for i, c := range n.Content {
		path := fmt.Sprintf("%s/%d", basePath, i)
		st := Step{Pos: posOf(c, path)}
		if mn := getFieldNode(c, "mappings"); mn != nil {
			ms, err := parseMappings(mn, path+"/mappings")
			if err != nil {
				return nil, err
			}
			st.HasMappings = true
			st.Mappings = ms
		}
		if rw := getFieldNode(c, "record_when"); rw != nil {
			cc, err := parseCondition(rw)
			if err != nil {
				return nil, err
			}
			st.HasRecordWhen = true
			st.RecordWhen = cc
		}
		if an := getFieldNode(c, "asserts"); an != nil {
			as, err := parseAsserts(an, path+"/asserts")
			if err != nil {
				return nil, err
			}
			st.HasAsserts = true
			st.Asserts = as
		}
		if bn := getFieldNode(c, "branch"); bn != nil {
			b, err := parseBranch(bn, path+"/branch")
			if err != nil {
				return nil, err
			}
			st.HasBranch = true
			st.Branch = b
		}
		out = append(out, st)
	}
	return out, nil
}

func parseInputSpec(n *yaml.Node) (InputSpec, error) {
	spec := InputSpec{}
	format := getFieldString(n, "format", "")
	switch format {
	case "csv":
		spec.Format = FormatCSV
		spec.CSV.HasHeader = true
		spec.CSV.Delimiter = ','
		if csvNode := getFieldNode(n, "csv"); csvNode != nil {
			spec.CSV.HasHeader = getFieldBool(csvNode, "has_header", true)
			if d := getFieldString(csvNode, "delimiter", ","); len(d) > 0 {
				spec.CSV.DelimiterRaw = d
				spec.CSV.Delimiter = []rune(d)[0]
			}
			if colsNode := getFieldNode(csvNode, "columns"); colsNode != nil {
				for _, cn := range colsNode.Content {
					spec.CSV.Columns = append(spec.CSV.Columns, CSVColumn{
						Name: getFieldString(cn, "name", ""),
						Type: getFieldString(cn, "type", "string"),
					})
				}
			}
		}
	case "json":
		spec.Format = FormatJSON
		if jsonNode := getFieldNode(n, "json"); jsonNode != nil {
			if rp := getFieldNode(jsonNode, "records_path"); rp != nil {
				spec.JSON.HasPath = true
				spec.JSON.RecordsPath = rp.Value
			}
		}
	default:
		return spec, fmt.Errorf("unknown input format %q", format)
	}
	return spec, nil
}

func parseFinalize(n *yaml.Node) (Finalize, error) {
	f := Finalize{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if !knownFinalizeKeys[key] {
			f.UnknownKeys = append(f.UnknownKeys, key)
		}
	}
	if filterNode := getFieldNode(n, "filter"); filterNode != nil {
		c, err := parseCondition(filterNode)
		if err != nil {
			return f, err
		}
		f.HasFilter = true
		f.Filter = c
	}
	if sortNode := getFieldNode(n, "sort"); sortNode != nil {
		f.HasSort = true
		f.Sort = SortSpec{By: getFieldString(sortNode, "by", ""), Order: getFieldString(sortNode, "order", "asc")}
	}
	if getFieldNode(n, "offset") != nil {
		f.HasOffset = true
		f.Offset = getFieldInt(n, "offset", 0)
	}
	if getFieldNode(n, "limit") != nil {
		f.HasLimit = true
		f.Limit = getFieldInt(n, "limit", 0)
	}
	if wrapNode := getFieldNode(n, "wrap"); wrapNode != nil {
		if wrapNode.Kind != yaml.MappingNode {
			return f, fmt.Errorf("finalize.wrap must be an object of expressions")
		}
		f.HasWrap = true
		f.Wrap = make(map[string]pipe.Pipeline, len(wrapNode.Content)/2)
		for i := 0; i+1 < len(wrapNode.Content); i += 2 {
			key := wrapNode.Content[i].Value
			p, err := parsePipeline(wrapNode.Content[i+1])
			if err != nil {
				return f, err
			}
			f.Wrap[key] = p
			f.WrapOrder = append(f.WrapOrder, key)
		}
	}
	return f, nil
}

func parseOutput(n *yaml.Node) Output {
	o := Output{}
	if nameNode := getFieldNode(n, "name"); nameNode != nil {
		o.HasName = true
		o.Name = nameNode.Value
	}
	return o
}

func parseCatch(n *yaml.Node) Catch {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	c := make(Catch, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		c[n.Content[i].Value] = n.Content[i+1].Value
	}
	return c
}

func parseEndpoint(root *yaml.Node) (*Endpoint, error) {
	ep := &Endpoint{}
	ep.Method = getFieldString(root, "method", "GET")
	ep.Path = getFieldString(root, "path", "")
	if inputNode := getFieldNode(root, "input"); inputNode != nil {
		spec, err := parseInputSpec(inputNode)
		if err != nil {
			return nil, err
		}
		ep.Input = spec
	}
	if stepsNode := getFieldNode(root, "steps"); stepsNode != nil {
		steps, err := parseSteps(stepsNode, "/steps")
		if err != nil {
			return nil, err
		}
		ep.Steps = steps
	}
	if replyNode := getFieldNode(root, "reply"); replyNode != nil {
		reply, err := parseMappings(replyNode, "/reply")
		if err != nil {
			return nil, err
		}
		ep.Reply = reply
	}
	ep.Catch = parseCatch(getFieldNode(root, "catch"))
	return ep, nil
}

func parseNetwork(root *yaml.Node) (*NetworkRequest, error) {
	reqNode := getFieldNode(root, "request")
	if reqNode == nil {
		reqNode = root
	}
	nr := &NetworkRequest{}
	nr.Method = getFieldString(reqNode, "method", "GET")
	urlNode := getFieldNode(reqNode, "url")
	if urlNode == nil {
		return nil, fmt.Errorf("network rule requires request.url")
	}
	urlP, err := parsePipeline(urlNode)
	if err != nil {
		return nil, err
	}
	nr.URL = urlP
	if hdrNode := getFieldNode(reqNode, "headers"); hdrNode != nil {
		nr.Headers = make(map[string]string, len(hdrNode.Content)/2)
		for i := 0; i+1 < len(hdrNode.Content); i += 2 {
			nr.Headers[hdrNode.Content[i].Value] = hdrNode.Content[i+1].Value
		}
	}
	bodyKinds := 0
	if bodyNode := getFieldNode(reqNode, "body"); bodyNode != nil {
		p, err := parsePipeline(bodyNode)
		if err != nil {
			return nil, err
		}
		nr.HasBody = true
		nr.Body = p
		bodyKinds++
	}
	if bmNode := getFieldNode(reqNode, "body_map"); bmNode != nil {
		nr.HasBodyMap = true
		nr.BodyMap = make(map[string]pipe.Pipeline, len(bmNode.Content)/2)
		for i := 0; i+1 < len(bmNode.Content); i += 2 {
			p, err := parsePipeline(bmNode.Content[i+1])
			if err != nil {
				return nil, err
			}
			nr.BodyMap[bmNode.Content[i].Value] = p
		}
		bodyKinds++
	}
	if brNode := getFieldNode(reqNode, "body_rule"); brNode != nil {
		nr.HasBodyRule = true
		nr.BodyRule = brNode.Value
		bodyKinds++
	}
	if bodyKinds > 1 {
		return nil, fmt.Errorf("network request.body/body_map/body_rule are mutually exclusive")
	}
	if to := getFieldNode(reqNode, "timeout"); to != nil {
		ms, err := parseDuration(to.Value)
		if err != nil {
			return nil, err
		}
		nr.TimeoutMS = ms
	}
	if retryNode := getFieldNode(reqNode, "retry"); retryNode != nil {
		nr.HasRetry = true
		nr.Retry = NetworkRetry{Max: getFieldInt(retryNode, "max", 0), Backoff: RetryBackoff(getFieldString(retryNode, "backoff", "fixed"))}
		if idNode := getFieldNode(retryNode, "initial_delay"); idNode != nil {
			ms, err := parseDuration(idNode.Value)
			if err != nil {
				return nil, err
			}
			nr.Retry.InitialDelay = ms
		}
	}
	if selNode := getFieldNode(reqNode, "select"); selNode != nil {
		nr.HasSelect = true
		nr.Select = selNode.Value
	}
	catchNode := getFieldNode(reqNode, "catch")
	if catchNode == nil {
		catchNode = getFieldNode(root, "catch")
	}
	nr.Catch = parseCatch(catchNode)
	return nr, nil
}

func parseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "ms"):
		return strconv.ParseInt(strings.TrimSuffix(s, "ms"), 10, 64)
	case strings.HasSuffix(s, "s"):
		n, err := strconv.ParseInt(strings.TrimSuffix(s, "s"), 10, 64)
		return n * 1000, err
	default:
		return 0, fmt.Errorf("duration %q must end in ms or s", s)
	}
}
