package nodescript

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dueldanov/nodescript/internal/types"
)

// Attribute is a formula or a parameter introduced by one node.
type Attribute struct {
	Name  string
	Node  *Node
	Param bool
	Line  int
	// Type is the static type resolved by the check pass in the context of
	// the declaring node.
	Type *types.Type

	formula evaluator
	def     evaluator
}

// Qualified returns Node.attr.
func (a *Attribute) Qualified() string {
	return a.Node.Name + "." + a.Name
}

// HasDefault reports whether a parameter carries a default expression.
func (a *Attribute) HasDefault() bool {
	return a.def != nil
}

// Node is a class-like entity with at most one parent.
type Node struct {
	Name   string
	Parent *Node
	Line   int

	unit  *Unit
	attrs map[string]*Attribute
	order []string
}

func newNode(unit *Unit, name string, parent *Node, line int) *Node {
	return &Node{
		Name:   name,
		Parent: parent,
		Line:   line,
		unit:   unit,
		attrs:  make(map[string]*Attribute),
	}
}

// Unit returns the compilation unit the node was declared in.
func (n *Node) Unit() *Unit {
	return n.unit
}

// Own returns the attribute declared on n itself.
func (n *Node) Own(name string) (*Attribute, bool) {
	a, ok := n.attrs[name]
	return a, ok
}

// Attributes lists the attributes declared on n, in declaration order.
func (n *Node) Attributes() []string {
	return slices.Clone(n.order)
}

// Lookup walks the parent chain for the nearest definition of name.
func (n *Node) Lookup(name string) *Attribute {
	for cur := n; cur != nil; cur = cur.Parent {
		if a, ok := cur.attrs[name]; ok {
			return a
		}
	}
	return nil
}

// IsA reports whether n is other or one of its descendants.
func (n *Node) IsA(other *Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

func (n *Node) add(attr *Attribute) {
	n.attrs[attr.Name] = attr
	n.order = append(n.order, attr.Name)
}

// effective returns the override-resolved attribute set, ancestors first.
// An override keeps the position of the attribute it shadows.
func (n *Node) effective() []*Attribute {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}

	var result []*Attribute
	pos := make(map[string]int)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, name := range chain[i].order {
			attr := chain[i].attrs[name]
			if p, ok := pos[name]; ok {
				result[p] = attr
				continue
			}
			pos[name] = len(result)
			result = append(result, attr)
		}
	}
	return result
}

type memoKey struct {
	instance string
	attr     string
}

// memoTable holds the attribute values computed during one evaluation
// request.
type memoTable map[memoKey]Value

// Unit is one compiled script.
type Unit struct {
	ID      uuid.UUID
	Name    string
	Version string
	// Digest hashes the source text. It is empty for units compiled from
	// an already parsed script.
	Digest string

	nodes   map[string]*Node
	order   []string
	imports map[string]*Unit
}

func newUnit(name, version string) *Unit {
	return &Unit{
		ID:      uuid.New(),
		Name:    name,
		Version: version,
		nodes:   make(map[string]*Node),
		imports: make(map[string]*Unit),
	}
}

// Node looks up a node declared in the unit.
func (u *Unit) Node(name string) (*Node, bool) {
	n, ok := u.nodes[name]
	return n, ok
}

// Nodes lists node names in declaration order.
func (u *Unit) Nodes() []string {
	return slices.Clone(u.order)
}

// Imports lists the aliases of imported units, sorted.
func (u *Unit) Imports() []string {
	aliases := maps.Keys(u.imports)
	slices.Sort(aliases)
	return aliases
}

// Import returns the unit imported under alias.
func (u *Unit) Import(alias string) (*Unit, bool) {
	imported, ok := u.imports[alias]
	return imported, ok
}

// EffectiveAttributes lists the qualified names (Node.attr) of every
// attribute visible on node, inherited ones included, each resolved to the
// definition that wins.
func (u *Unit) EffectiveAttributes(node string) ([]string, error) {
	n, ok := u.nodes[node]
	if !ok {
		return nil, newRuntimeError(CodeUndefinedNode, "node %s is not defined in %s", node, u.Name)
	}

	attrs := n.effective()
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Qualified()
	}
	return names, nil
}

// Params lists every parameter name declared in the unit, sorted.
func (u *Unit) Params() []string {
	set := make(map[string]struct{})
	for _, n := range u.nodes {
		for name, a := range n.attrs {
			if a.Param {
				set[name] = struct{}{}
			}
		}
	}
	names := maps.Keys(set)
	slices.Sort(names)
	return names
}

// NodeParams lists the parameters in node's effective attribute set, sorted.
func (u *Unit) NodeParams(node string) ([]string, error) {
	n, ok := u.nodes[node]
	if !ok {
		return nil, newRuntimeError(CodeUndefinedNode, "node %s is not defined in %s", node, u.Name)
	}

	var names []string
	for _, a := range n.effective() {
		if a.Param {
			names = append(names, a.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// CacheClass is the result cache class of the node's attributes. It names
// the unit, its version and source digest so that results never leak
// between units or outlive a source change in a persistent cache.
func (n *Node) CacheClass() string {
	u := n.unit
	if u.Digest == "" {
		return u.String() + "/" + n.Name
	}
	return u.String() + "#" + u.Digest + "/" + n.Name
}

func (u *Unit) String() string {
	if u.Version == "" {
		return u.Name
	}
	return fmt.Sprintf("%s@%s", u.Name, u.Version)
}

func (u *Unit) add(n *Node) {
	u.nodes[n.Name] = n
	u.order = append(u.order, n.Name)
}
