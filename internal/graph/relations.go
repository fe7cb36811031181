package graph

// Relations exposes the hierarchy and dependency edges of a task set. The two
// relations are checked together: a dependency is inherited by every
// descendant, and depending on a container means depending on its subtree.
type Relations[N comparable] interface {
	Parent(n N) (N, bool)
	Children(n N) []N
	Depends(n N) []N
	Name(n N) string
}

// CheckDepends verifies that task may depend on dependee without introducing
// a cycle across the combined parent/depends relation.
func CheckDepends[N comparable](r Relations[N], task, dependee N) error {
	if task == dependee {
		return circularf("%s can not depend on itself", r.Name(task))
	}
	for _, a := range ancestors(r, task) {
		if a == dependee {
			return circularf("%s can not depend on its ancestor %s", r.Name(task), r.Name(dependee))
		}
		for _, d := range r.Depends(a) {
			if d == dependee {
				return circularf("%s already depends on %s through its ancestor %s",
					r.Name(task), r.Name(dependee), r.Name(a))
			}
		}
	}
	for _, d := range descendants(r, task) {
		if d == dependee {
			return circularf("%s can not depend on its descendant %s", r.Name(task), r.Name(dependee))
		}
	}

	scope := scopeOf(r, task)
	if hit, ok := reaches(r, []N{dependee}, scope); ok {
		return circularf("%s depends on %s which leads back to %s",
			r.Name(task), r.Name(dependee), r.Name(hit))
	}
	return nil
}

// CheckParent verifies that parent may become the parent of child.
func CheckParent[N comparable](r Relations[N], child, parent N) error {
	if child == parent {
		return circularf("%s can not be its own parent", r.Name(child))
	}
	for _, d := range descendants(r, child) {
		if d == parent {
			return circularf("%s is a descendant of %s", r.Name(parent), r.Name(child))
		}
	}

	moved := reparented[N]{Relations: r, child: child, parent: parent}
	scope := scopeOf[N](moved, child)
	var starts []N
	for n := range scope {
		starts = append(starts, moved.Depends(n)...)
	}
	if hit, ok := reaches[N](moved, starts, scope); ok {
		return circularf("moving %s under %s makes it depend on %s",
			r.Name(child), r.Name(parent), r.Name(hit))
	}
	return nil
}

// reparented overlays a proposed parent change on top of r.
type reparented[N comparable] struct {
	Relations[N]
	child  N
	parent N
}

func (m reparented[N]) Parent(n N) (N, bool) {
	if n == m.child {
		return m.parent, true
	}
	return m.Relations.Parent(n)
}

func (m reparented[N]) Children(n N) []N {
	kids := m.Relations.Children(n)
	out := make([]N, 0, len(kids)+1)
	for _, k := range kids {
		if k != m.child {
			out = append(out, k)
		}
	}
	if n == m.parent {
		out = append(out, m.child)
	}
	return out
}

func ancestors[N comparable](r Relations[N], n N) []N {
	var out []N
	seen := map[N]bool{n: true}
	for {
		p, ok := r.Parent(n)
		if !ok || seen[p] {
			return out
		}
		seen[p] = true
		out = append(out, p)
		n = p
	}
}

func descendants[N comparable](r Relations[N], n N) []N {
	var out []N
	seen := map[N]bool{n: true}
	queue := append([]N(nil), r.Children(n)...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		queue = append(queue, r.Children(c)...)
	}
	return out
}

// scopeOf is n plus everything that contains it or that it contains.
func scopeOf[N comparable](r Relations[N], n N) map[N]bool {
	scope := map[N]bool{n: true}
	for _, a := range ancestors(r, n) {
		scope[a] = true
	}
	for _, d := range descendants(r, n) {
		scope[d] = true
	}
	return scope
}

// reaches walks everything that waiting on starts implies and returns the
// first node found inside target. Waiting for a node's end means waiting for
// its whole subtree, and every node inherits the dependencies of its ancestors.
func reaches[N comparable](r Relations[N], starts []N, target map[N]bool) (N, bool) {
	var zero N
	visited := make(map[N]bool)
	queue := append([]N(nil), starts...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, x := range append([]N{n}, descendants(r, n)...) {
			if target[x] {
				return x, true
			}
			for _, y := range append([]N{x}, ancestors(r, x)...) {
				for _, d := range r.Depends(y) {
					if !visited[d] {
						queue = append(queue, d)
					}
				}
			}
		}
	}
	return zero, false
}
