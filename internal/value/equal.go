package value

// Equal implements the JSON-structural equality condition comparisons
// use (spec.md §4.1): same variant AND same content. Distinct numeric
// kinds never compare equal even when numerically identical, so
// Equal(Int(1), Float(1.0)) is false, matching the source implementation's
// serde_json::Value equality (which is likewise variant-strict).
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Missing:
		_, ok := b.(Missing)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.ForEach(func(k string, v Value) bool {
			ov, present := bv.Get(k)
			if !present || !Equal(v, ov) {
				equal = false
				return false
			}
			return true
		})
		return equal
	default:
		return false
	}
}
