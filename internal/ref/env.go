package ref

import "github.com/rulemorph/rulemorph/internal/value"

// letFrame is a lexical scope link for `let` bindings. Frames form a
// singly-linked list so that WithLet is O(1) and Env remains a small,
// cheaply-copied value: extending a pipeline's environment never
// mutates an ancestor's view of its own bindings.
type letFrame struct {
	name   string
	val    value.Value
	parent *letFrame
}

// Env is the evaluation environment threaded through reference
// resolution, condition evaluation, and pipe interpretation. It is a
// value type; Env.WithLet and Env.WithItem return an extended copy
// rather than mutating the receiver, so a saved Env keeps observing its
// own binding set even after a callee extends its copy.
type Env struct {
	Input   value.Value
	Context value.Value
	Out     value.Value

	Item         value.Value
	HasItemIndex bool
	ItemIndex    int

	Acc    value.Value
	HasAcc bool

	lets *letFrame
}

// NewEnv builds the base per-record environment (spec §4.6): input
// record, caller-supplied context, and a fresh empty @out.
func NewEnv(input, context, out value.Value) Env {
	return Env{Input: input, Context: context, Out: out}
}

// WithLet returns a copy of e with name bound to val, visible to
// lookups made against the returned Env and any Env derived from it.
func (e Env) WithLet(name string, val value.Value) Env {
	e.lets = &letFrame{name: name, val: val, parent: e.lets}
	return e
}

// WithItem returns a copy of e with @item and @item.index set for the
// scope of a map/filter/reduce body evaluation.
func (e Env) WithItem(item value.Value, index int) Env {
	e.Item = item
	e.HasItemIndex = true
	e.ItemIndex = index
	return e
}

// WithAcc returns a copy of e with @acc bound, for reduce/fold bodies.
func (e Env) WithAcc(acc value.Value) Env {
	e.Acc = acc
	e.HasAcc = true
	return e
}

// WithOut returns a copy of e with @out replaced. The record engine's
// steps path uses it to rebind @out before each step, since a
// returning branch can replace the accumulated output object.
func (e Env) WithOut(out value.Value) Env {
	e.Out = out
	return e
}

func (e Env) lookupLet(name string) (value.Value, bool) {
	for f := e.lets; f != nil; f = f.parent {
		if f.name == name {
			return f.val, true
		}
	}
	return nil, false
}
