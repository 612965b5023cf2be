package syntax

// Script is the parsed form of one compilation unit, in source order.
type Script struct {
	Decls []Decl
}

// Decl is a top-level declaration. Line is the 1-based source line.
type Decl interface {
	Type() string
	Pos() int
}

// ImportDecl makes another unit's nodes referenceable as Unit::Node.
type ImportDecl struct {
	Unit    string
	Version string
	Line    int
}

func (d *ImportDecl) Type() string { return "IMPORT" }
func (d *ImportDecl) Pos() int     { return d.Line }

// NodeDecl opens a node block. ParentScope is the import alias of a parent
// living in another unit.
type NodeDecl struct {
	Name        string
	ParentScope string
	Parent      string
	Line        int
}

func (d *NodeDecl) Type() string { return "NODE" }
func (d *NodeDecl) Pos() int     { return d.Line }

// AttrDecl declares a formula (Param false) or a parameter with an optional
// Default on the enclosing node.
type AttrDecl struct {
	Name    string
	Formula Expr
	Param   bool
	Default Expr
	Line    int
}

func (d *AttrDecl) Type() string { return "ATTRIBUTE" }
func (d *AttrDecl) Pos() int     { return d.Line }

// Expr is any expression node.
type Expr interface {
	exprNode()
}

// Literal holds int64, float64, string, bool or nil.
type Literal struct {
	Value interface{}
}

type Ident struct {
	Name string
}

// ScopedIdent is Scope::Name.
type ScopedIdent struct {
	Scope string
	Name  string
}

type Member struct {
	X    Expr
	Name string
}

type Index struct {
	X     Expr
	Index Expr
}

// Call holds either positional Args or Named args, never both.
type Call struct {
	Fn    Expr
	Args  []Expr
	Named []NamedArg
}

type NamedArg struct {
	Name  string
	Value Expr
}

type Unary struct {
	Op string
	X  Expr
}

type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

type List struct {
	Elems []Expr
}

type Hash struct {
	Entries []HashEntry
}

type HashEntry struct {
	Key   Expr
	Value Expr
}

// Comprehension is [Body for Var in Seq if Cond]; Cond may be nil.
type Comprehension struct {
	Body Expr
	Var  string
	Seq  Expr
	Cond Expr
}

func (*Literal) exprNode()       {}
func (*Ident) exprNode()         {}
func (*ScopedIdent) exprNode()   {}
func (*Member) exprNode()        {}
func (*Index) exprNode()         {}
func (*Call) exprNode()          {}
func (*Unary) exprNode()         {}
func (*Binary) exprNode()        {}
func (*If) exprNode()            {}
func (*List) exprNode()          {}
func (*Hash) exprNode()          {}
func (*Comprehension) exprNode() {}
