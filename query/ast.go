package query

// Expr is the marker interface implemented by every AST node the parser
// produces. The compiler type-switches over concrete node types; there
// is deliberately no visitor interface (spec §4.7 step 2: "the
// implementer may choose any IR").
type Expr interface{ exprNode() }

// Sequence is a comma-separated expression list (the grammar's top-level
// Expr production). A single expression is returned as itself instead
// of being wrapped, so a Sequence holds two or more items, or none for
// the empty "()" expression.
type Sequence struct{ Items []Expr }

// Number is an integer or decimal literal.
type Number struct{ Val float64 }

// String is a single- or double-quoted string literal, already
// unescaped.
type String struct{ Val string }

// ContextItem is the "." primary expression: the current focus item.
type ContextItem struct{}

// VarRef is a "$name" variable reference.
type VarRef struct{ Name string }

// Paren is a parenthesized sub-expression, kept as a distinct node only
// so predicates can distinguish "(expr)" grouping from a bare FilterExpr
// primary; it compiles identically to its Inner.
type Paren struct{ Inner Expr }

// Call covers both FunctionCall and the grammar's ReduceAxis production:
// both are "name(args)" shaped, so one node serves both roles. The
// compiler resolves Name against the builtin function table.
type Call struct {
	Name string
	Args []Expr
}

// BinOp is an arithmetic, union, or range binary operator: +, -, *,
// div, mod, |, union, intersect, except, to. All are left-associative
// except "to", which is non-associative.
type BinOp struct {
	Op          string
	Left, Right Expr
}

// CmpOp is a non-associative comparison: a single CmpOp never nests
// another CmpOp as an operand (per the grammar's CmpExpr production).
type CmpOp struct {
	Op          string // one of = != < <= > >= eq ne lt le gt ge is
	Left, Right Expr
}

// UnaryOp is a prefix + or - applied to a single operand.
type UnaryOp struct {
	Op string
	X  Expr
}

// And is a short-circuiting logical conjunction; Or is its disjunction
// counterpart. Each holds exactly two operands; a chain of n "and"s
// parses to n-1 left-nested And nodes.
type And struct{ Left, Right Expr }
type Or struct{ Left, Right Expr }

// For is "for $Var in In return Return".
type For struct {
	Var    string
	In     Expr
	Return Expr
}

// Quantified is "some/every $Var in In satisfies Satisfies". Kind is
// "some" or "every".
type Quantified struct {
	Kind      string
	Var       string
	In        Expr
	Satisfies Expr
}

// If is "if ( Cond ) then Then else Else".
type If struct {
	Cond, Then, Else Expr
}

// NodeTest discriminates one AxisStep's node test: Any matches every
// node, Local == "*" is a local-name wildcard. A bare identifier
// starting with an uppercase letter is a kind test resolved against the
// type registry as each candidate is tested; otherwise it is an attribute/name-match
// test (spec §4.7 "Node tests").
type NodeTest struct {
	Any   bool
	NS    string // "" (unqualified), "*" (namespace wildcard), or explicit
	Local string // "*" for a local-name wildcard
}

// RootStep is the absolute path marker "/" at the start of a PathExpr.
// It resolves directly to the content tree's root rather than
// replicating the empty-test self::root() mechanism the query language
// was modeled on: that mechanism relies on a whole-sequence builtin
// being invoked as a per-item predicate, which does not hold together
// outside its original single caller.
type RootStep struct{}

// Step is one segment of a RelativePathExpr: an optional preceding "//"
// (DoubleSlash, meaning "insert descendant-or-self::node() before this
// step"), an axis name (Axis == "" means the default "child" axis), a
// node test, and zero or more predicates.
type Step struct {
	DoubleSlash bool
	Axis        string
	Test        NodeTest
	Predicates  []Expr
}

// PathExpr is a location path: Absolute means it began with "/" or "//"
// (LeadingDouble records which), and Steps holds the remaining segments.
// A path with Absolute set and no Steps is just "/", i.e. the root
// itself.
type PathExpr struct {
	Absolute      bool
	LeadingDouble bool
	Steps         []Expr
}

// FilterExpr applies zero or more predicates to a non-step primary
// expression (spec grammar's FilterExpr production): "$x[1]",
// "(1,2,3)[. gt 1]", "func()[position]".
type FilterExpr struct {
	Primary    Expr
	Predicates []Expr
}

func (Sequence) exprNode()    {}
func (Number) exprNode()      {}
func (String) exprNode()      {}
func (ContextItem) exprNode() {}
func (VarRef) exprNode()      {}
func (Paren) exprNode()       {}
func (Call) exprNode()        {}
func (BinOp) exprNode()       {}
func (CmpOp) exprNode()       {}
func (UnaryOp) exprNode()     {}
func (And) exprNode()         {}
func (Or) exprNode()          {}
func (For) exprNode()         {}
func (Quantified) exprNode()  {}
func (If) exprNode()          {}
func (PathExpr) exprNode()    {}
func (FilterExpr) exprNode()  {}
