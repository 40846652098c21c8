// Package finalize applies the fixed filter → sort → offset/limit →
// wrap pipeline to a rule's emitted record sequence (spec §4.8). The
// order is not reconfigurable, so Run is a straight-line sequence of
// stages rather than a compiled plan.
//
// Rulemorph's `filter` condition is a sealed union
// (`internal/cond.Condition`: All/Any/Compare) compiled once by the
// rule loader and evaluated per record, so finalize reuses it directly
// rather than introducing a second, parallel predicate type.
package finalize

import (
	"sort"

	"github.com/rulemorph/rulemorph/internal/cond"
	"github.com/rulemorph/rulemorph/internal/pipe"
	"github.com/rulemorph/rulemorph/internal/ref"
	"github.com/rulemorph/rulemorph/internal/rule"
	"github.com/rulemorph/rulemorph/internal/value"
)

// Run applies f to records in the fixed order spec §4.8 defines. context
// is the caller-supplied `@context` value, threaded into `wrap`
// pipelines the same way it is threaded into record evaluation.
func Run(f rule.Finalize, records []value.Value, context value.Value, reg *pipe.Registry) (value.Value, error) {
	out := records

	if f.HasFilter {
		out = filterRecords(f.Filter, out, reg)
	}
	if f.HasSort {
		out = sortRecords(out, f.Sort)
	}
	if f.HasOffset || f.HasLimit {
		out = paginate(out, f)
	}
	if f.HasWrap {
		return wrapRecords(f, out, context, reg)
	}
	return value.Array(out), nil
}

// filterRecords keeps elements whose filter condition evaluates true
// with @item bound to the element. An evaluation error is treated the
// same as false and drops the element, matching the demotion pattern
// used everywhere else a predicate can fail (spec §4.4's "when" and
// §4.6's mapping `when`).
func filterRecords(c cond.Condition, records []value.Value, reg *pipe.Registry) []value.Value {
	env := ref.NewEnv(value.NullValue, value.NullValue, value.NewObject())
	out := make([]value.Value, 0, len(records))
	for i, r := range records {
		ok, err := cond.Eval(c, env.WithItem(r, i), reg)
		if err == nil && ok {
			out = append(out, r)
		}
	}
	return out
}

// sortRecords stable-sorts by a dot path into each record. Records
// missing the sort key sort last in ascending order and first in
// descending order (spec §4.8).
func sortRecords(records []value.Value, s rule.SortSpec) []value.Value {
	out := append([]value.Value(nil), records...)
	desc := s.Order == "desc"
	sort.SliceStable(out, func(i, j int) bool {
		return compareByPath(out[i], out[j], s.By, desc) < 0
	})
	return out
}

func compareByPath(a, b value.Value, by string, desc bool) int {
	va, vb := getByPath(a, by), getByPath(b, by)
	aMissing, bMissing := value.IsMissing(va), value.IsMissing(vb)

	switch {
	case aMissing && bMissing:
		return 0
	case aMissing:
		if desc {
			return -1
		}
		return 1
	case bMissing:
		if desc {
			return 1
		}
		return -1
	}

	ord, err := value.Compare(va, vb)
	if err != nil {
		return 0
	}
	cmp := int(ord)
	if desc {
		cmp = -cmp
	}
	return cmp
}

// getByPath reads a dotted field path out of a record, returning
// Missing on any absent or non-object intermediate. Reuses
// ref.ResolveString's "@input." convention by binding the record itself
// as @input, since sort/filter paths address fields of the record they
// are evaluated against.
func getByPath(v value.Value, path string) value.Value {
	env := ref.NewEnv(v, value.NullValue, value.NewObject())
	return ref.ResolveString("@input."+path, env)
}

func paginate(records []value.Value, f rule.Finalize) []value.Value {
	start := 0
	if f.HasOffset {
		start = f.Offset
	}
	if start > len(records) {
		start = len(records)
	}
	end := len(records)
	if f.HasLimit {
		if start+f.Limit < end {
			end = start + f.Limit
		}
	}
	return records[start:end]
}

// wrapRecords replaces the array with an object whose fields are each
// computed by evaluating a pipeline against an env with @out bound to
// the (already filtered/sorted/paginated) array (spec §4.8 step 4).
func wrapRecords(f rule.Finalize, records []value.Value, context value.Value, reg *pipe.Registry) (value.Value, error) {
	env := ref.NewEnv(value.NullValue, context, value.Array(records))
	obj := value.NewObject()
	for _, key := range f.WrapOrder {
		p := f.Wrap[key]
		v, err := pipe.Eval(p, env, reg)
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
	}
	return obj, nil
}
