package typedoc

// Walk visits r and its children depth-first in declaration order. Children
// of a reflection are skipped when fn returns false for it.
func Walk(r *Reflection, fn func(*Reflection) bool) {
	if r == nil {
		return
	}
	if !fn(r) {
		return
	}
	for _, child := range r.Children {
		Walk(child, fn)
	}
}

// Find collects every reflection below root, root included, whose kind is
// one of kinds.
func Find(root *Reflection, kinds ...Kind) []*Reflection {
	var out []*Reflection
	Walk(root, func(r *Reflection) bool {
		if r.Is(kinds...) {
			out = append(out, r)
		}
		return true
	})
	return out
}
