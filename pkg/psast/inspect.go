// SPDX-License-Identifier: MPL-2.0

package psast

// Inspect traverses the tree rooted at n in depth-first order. If fn returns
// false, the children of that node are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, fn)
	}
}

// FindAll returns every node of type T under root (root included), in
// source order.
func FindAll[T Node](root Node) []T {
	var out []T
	Inspect(root, func(n Node) bool {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Enclosing returns the nearest strict ancestor of n with type T.
func Enclosing[T Node](n Node) (T, bool) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if t, ok := p.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}
