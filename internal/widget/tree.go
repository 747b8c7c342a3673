package widget

import (
	"fmt"
	"sync"
)

// PropertyChecker validates a property against the declared schema of a kind.
type PropertyChecker interface {
	CheckProperty(kind Kind, p Property) error
}

type node struct {
	kind     Kind
	props    []Property
	text     string
	parent   ID
	children []ID
}

// Tree is the host-owned node store. IDs are assigned from 1 upward and
// never reused within a tree.
type Tree struct {
	mu         sync.RWMutex
	nextID     ID
	nodes      map[ID]*node
	containers map[Location]ID
	checker    PropertyChecker
}

// NewTree creates an empty tree. A nil checker accepts every well-formed value.
func NewTree(checker PropertyChecker) *Tree {
	return &Tree{
		nodes:      make(map[ID]*node),
		containers: make(map[Location]ID),
		checker:    checker,
	}
}

// Container returns the root container for a render location, creating it
// on first use.
func (t *Tree) Container(loc Location) (ID, error) {
	if loc != LocationInline && loc != LocationView {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLocation, loc)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.containers[loc]; ok {
		return id, nil
	}
	id := t.alloc(&node{kind: KindRoot})
	t.containers[loc] = id
	return id, nil
}

// CreateInstance adds a detached node of the given kind.
func (t *Tree) CreateInstance(kind Kind, props []Property) (ID, error) {
	if !kind.Valid() || kind == KindText {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if err := t.checkProps(kind, props); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.alloc(&node{kind: kind, props: mergeProps(nil, props)}), nil
}

// CreateTextInstance adds a detached text node.
func (t *Tree) CreateTextInstance(text string) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.alloc(&node{kind: KindText, text: text})
}

// CloneInstance creates a fresh node with the given kind and properties.
// Children are never carried over; the reconciler re-attaches them.
func (t *Tree) CloneInstance(kind Kind, props []Property) (ID, error) {
	return t.CreateInstance(kind, props)
}

// AppendChild moves child to the end of parent's children.
func (t *Tree) AppendChild(parent, child ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, c, err := t.pair(parent, child)
	if err != nil {
		return err
	}

	t.detach(child, c)
	p.children = append(p.children, child)
	c.parent = parent
	return nil
}

// InsertBefore moves child so it sits immediately before before, which must
// currently be a child of parent.
func (t *Tree) InsertBefore(parent, child, before ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, c, err := t.pair(parent, child)
	if err != nil {
		return err
	}
	if _, ok := t.nodes[before]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, before)
	}
	if child == before || indexOf(p.children, before) < 0 {
		return fmt.Errorf("%w: %d in %d", ErrNotChild, before, parent)
	}

	t.detach(child, c)
	at := indexOf(p.children, before)
	p.children = append(p.children, 0)
	copy(p.children[at+1:], p.children[at:])
	p.children[at] = child
	c.parent = parent
	return nil
}

// RemoveChild detaches child from parent and drops its subtree.
func (t *Tree) RemoveChild(parent, child ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.nodes[parent]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, parent)
	}
	if _, ok := t.nodes[child]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, child)
	}
	i := indexOf(p.children, child)
	if i < 0 {
		return fmt.Errorf("%w: %d in %d", ErrNotChild, child, parent)
	}

	p.children = append(p.children[:i], p.children[i+1:]...)
	t.drop(child)
	return nil
}

// ReplaceChildren swaps the whole child list of container. Previous children
// that are not part of the new list are dropped.
func (t *Tree) ReplaceChildren(container ID, children []ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.nodes[container]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, container)
	}
	if p.kind == KindText {
		return fmt.Errorf("%w: %d is text", ErrLeaf, container)
	}
	seen := make(map[ID]struct{}, len(children))
	for _, id := range children {
		if _, ok := t.nodes[id]; !ok {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if _, dup := seen[id]; dup || id == container || t.isAncestor(id, container) {
			return fmt.Errorf("%w: %d", ErrCycle, id)
		}
		if t.isContainer(id) {
			return fmt.Errorf("%w: %d", ErrContainer, id)
		}
		seen[id] = struct{}{}
	}

	for _, id := range children {
		t.detach(id, t.nodes[id])
	}
	old := p.children
	p.children = make([]ID, 0, len(children))
	for _, id := range old {
		t.drop(id)
	}
	for _, id := range children {
		p.children = append(p.children, id)
		t.nodes[id].parent = container
	}
	return nil
}

// SetProperties replaces the named properties of a node and deletes the
// removed ones. Either the whole batch is applied or none of it.
func (t *Tree) SetProperties(id ID, props []Property, removed ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if n.kind == KindText {
		return fmt.Errorf("%w: text widgets carry no properties", ErrInvalidProperty)
	}
	if err := t.checkProps(n.kind, props); err != nil {
		return err
	}
	for _, name := range removed {
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidProperty)
		}
		for _, p := range props {
			if p.Name == name {
				return fmt.Errorf("%w: %q both set and removed", ErrInvalidProperty, name)
			}
		}
	}

	n.props = dropProps(mergeProps(n.props, props), removed)
	return nil
}

// SetText replaces the content of a text node.
func (t *Tree) SetText(id ID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if n.kind != KindText {
		return fmt.Errorf("%w: %d is %s, not text", ErrInvalidKind, id, n.kind)
	}
	n.text = text
	return nil
}

// Kind returns the kind of a node.
func (t *Tree) Kind(id ID) (Kind, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return n.kind, nil
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Snapshot returns a deep copy of the subtree rooted at id.
func (t *Tree) Snapshot(id ID) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return t.snapshot(id), nil
}

func (t *Tree) snapshot(id ID) *Node {
	n := t.nodes[id]
	out := &Node{
		ID:   id,
		Kind: n.kind,
		Text: n.text,
	}
	if len(n.props) > 0 {
		out.Properties = append([]Property(nil), n.props...)
	}
	for _, c := range n.children {
		out.Children = append(out.Children, t.snapshot(c))
	}
	return out
}

func (t *Tree) alloc(n *node) ID {
	t.nextID++
	t.nodes[t.nextID] = n
	return t.nextID
}

func (t *Tree) pair(parent, child ID) (*node, *node, error) {
	p, ok := t.nodes[parent]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrNotFound, parent)
	}
	c, ok := t.nodes[child]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrNotFound, child)
	}
	if p.kind == KindText {
		return nil, nil, fmt.Errorf("%w: %d is text", ErrLeaf, parent)
	}
	if parent == child || t.isAncestor(child, parent) {
		return nil, nil, fmt.Errorf("%w: %d into %d", ErrCycle, child, parent)
	}
	if t.isContainer(child) {
		return nil, nil, fmt.Errorf("%w: %d", ErrContainer, child)
	}
	return p, c, nil
}

func (t *Tree) isContainer(id ID) bool {
	for _, cid := range t.containers {
		if cid == id {
			return true
		}
	}
	return false
}

// isAncestor reports whether a is an ancestor of id.
func (t *Tree) isAncestor(a, id ID) bool {
	for cur := t.nodes[id].parent; cur != 0; cur = t.nodes[cur].parent {
		if cur == a {
			return true
		}
	}
	return false
}

func (t *Tree) detach(id ID, n *node) {
	if n.parent == 0 {
		return
	}
	if p, ok := t.nodes[n.parent]; ok {
		if i := indexOf(p.children, id); i >= 0 {
			p.children = append(p.children[:i], p.children[i+1:]...)
		}
	}
	n.parent = 0
}

func (t *Tree) drop(id ID) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	for _, c := range n.children {
		t.drop(c)
	}
	delete(t.nodes, id)
	for loc, cid := range t.containers {
		if cid == id {
			delete(t.containers, loc)
		}
	}
}

func (t *Tree) checkProps(kind Kind, props []Property) error {
	for _, p := range props {
		if p.Name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidProperty)
		}
		if err := p.Value.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		if t.checker != nil {
			if err := t.checker.CheckProperty(kind, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeProps replaces same-named properties in place and appends new ones,
// keeping the original order.
func mergeProps(dst, src []Property) []Property {
	out := append([]Property(nil), dst...)
	for _, p := range src {
		replaced := false
		for i := range out {
			if out[i].Name == p.Name {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

// dropProps removes the named properties. Unknown names are ignored.
func dropProps(props []Property, names []string) []Property {
	if len(names) == 0 {
		return props
	}
	out := props[:0]
	for _, p := range props {
		keep := true
		for _, name := range names {
			if p.Name == name {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, p)
		}
	}
	return out
}

func indexOf(ids []ID, id ID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
