package types

// Type is a node of the fixed type tree rooted at Base:
//
//	Base
//	├── String
//	├── Boolean
//	├── Number
//	│   └── Decimal
//	│       └── Integer
//	└── Model(T)...
//
// Types are compared by identity. The primitive types are package-level
// singletons; model types are created by the host model provider, one per
// distinct external type name.
type Type struct {
	name   string
	parent *Type
	model  bool
}

var (
	Base    = &Type{name: "Base"}
	String  = &Type{name: "String", parent: Base}
	Number  = &Type{name: "Number", parent: Base}
	Decimal = &Type{name: "Decimal", parent: Number}
	Integer = &Type{name: "Integer", parent: Decimal}
	Boolean = &Type{name: "Boolean", parent: Base}
)

// NewModel creates the type of an external model. Callers should keep one
// instance per model name since types compare by identity.
func NewModel(name string) *Type {
	return &Type{name: name, parent: Base, model: true}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// Parent returns the direct supertype, nil for Base.
func (t *Type) Parent() *Type { return t.parent }

// IsModel reports whether t was supplied by a host model provider.
func (t *Type) IsModel() bool { return t.model }

// Subtype reports whether a <= b, i.e. b is a or one of its ancestors.
func Subtype(a, b *Type) bool {
	for cur := a; cur != nil; cur = cur.parent {
		if cur == b {
			return true
		}
	}
	return false
}

// LUB returns the lowest common ancestor of a and b. Unrelated types meet at
// Base.
func LUB(a, b *Type) *Type {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	for cur := a; cur != nil; cur = cur.parent {
		if Subtype(b, cur) {
			return cur
		}
	}
	return Base
}

// IsNumeric reports whether t is Number or one of its subtypes.
func IsNumeric(t *Type) bool {
	return Subtype(t, Number)
}
