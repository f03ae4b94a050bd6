package compile

// ListContext ties a list item block to the list it belongs to. Identity
// groups items rendered under one numbering instance, depth grows with
// nesting while the identity stays with the top level list.
type ListContext struct {
	Identity int
	Depth    int // 1-based
	Ordered  bool
}

// listAllocator hands out numbering identities for one compilation. Sibling
// top level lists receive fresh consecutive identities in document order, a
// list nested inside an item of an open list shares that list's identity
// one level deeper.
type listAllocator struct {
	next int
	open []ListContext
}

func newListAllocator(base int) listAllocator {
	return listAllocator{next: base}
}

func (a *listAllocator) enter(ordered bool) ListContext {
	var ctx ListContext
	if len(a.open) == 0 {
		ctx = ListContext{Identity: a.next, Depth: 1, Ordered: ordered}
		a.next++
	} else {
		enclosing := a.open[len(a.open)-1]
		ctx = ListContext{Identity: enclosing.Identity, Depth: enclosing.Depth + 1, Ordered: ordered}
	}
	a.open = append(a.open, ctx)
	return ctx
}

func (a *listAllocator) leave() {
	a.open = a.open[:len(a.open)-1]
}
