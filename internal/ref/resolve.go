package ref

import "github.com/rulemorph/rulemorph/internal/value"

// Resolve evaluates p against env. Resolution is total (spec §8): an
// absent object key, an out-of-range array index, or indexing into the
// wrong container kind all yield value.MissingValue, never an error.
func Resolve(p Path, env Env) value.Value {
	segs := p.Segments

	var cur value.Value
	switch p.Namespace {
	case "input":
		cur = env.Input
	case "context":
		cur = env.Context
	case "out":
		cur = env.Out
	case "item":
		if len(segs) > 0 && segs[0].Kind == FieldSegment && segs[0].Name == "index" {
			if !env.HasItemIndex {
				return value.MissingValue
			}
			cur = value.Int(env.ItemIndex)
			segs = segs[1:]
			break
		}
		cur = env.Item
	case "acc":
		if !env.HasAcc {
			return value.MissingValue
		}
		cur = env.Acc
	default:
		v, ok := env.lookupLet(p.Namespace)
		if !ok {
			return value.MissingValue
		}
		cur = v
	}

	return traverse(cur, segs)
}

// traverse walks segs over cur, one segment at a time, per the lookup
// rules in spec §4.2.
func traverse(cur value.Value, segs []Segment) value.Value {
	for _, seg := range segs {
		if value.IsMissing(cur) {
			return value.MissingValue
		}
		switch seg.Kind {
		case FieldSegment:
			obj, ok := cur.(*value.Object)
			if !ok {
				return value.MissingValue
			}
			v, present := obj.Get(seg.Name)
			if !present {
				return value.MissingValue
			}
			cur = v
		case IndexSegment:
			arr, ok := cur.(value.Array)
			if !ok {
				return value.MissingValue
			}
			idx := seg.Index
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				return value.MissingValue
			}
			cur = arr[idx]
		}
	}
	return cur
}

// ResolveString parses s as a reference (applying the implicit-@input
// rule for bare mapping sources) and resolves it against env. A syntax
// error in s is a caller bug (rule loading validates reference syntax
// up front), so this returns Missing rather than propagating a parse
// error into per-record evaluation.
func ResolveString(s string, env Env) value.Value {
	p, err := Parse(NormalizeSource(s))
	if err != nil {
		return value.MissingValue
	}
	return Resolve(p, env)
}
