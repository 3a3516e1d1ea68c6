package kea

// Expr is a node of the abstract syntax tree. Nodes are immutable once built
// and exclusively owned by their parent.
type Expr interface{}

type NumberExpr struct {
	Val float64
}

type VariableExpr struct {
	Name string
}

type BinaryExpr struct {
	Op  rune
	Lhs Expr
	Rhs Expr
}

type CallExpr struct {
	Callee string
	Args   []Expr
}

type IfExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// ForExpr is a counted loop. Step is nil when the step clause was omitted,
// in which case the loop steps by 1.
type ForExpr struct {
	Var   string
	Start Expr
	End   Expr
	Step  Expr
	Body  Expr
}

// Prototype captures a function's name and parameter names, and thereby its
// arity. Duplicate parameter names are not rejected; the last binding wins.
type Prototype struct {
	Name   string
	Params []string
}

type Function struct {
	Proto *Prototype
	Body  Expr
}

// AnonFuncName is the name given to a top-level expression wrapped as a
// zero-argument function. Identifiers cannot start with '_', so it cannot
// collide with user code.
const AnonFuncName = "__anon_expr"

// Unit is what a single top-level construct compiles as: a bare declaration
// (extern) or a full definition (def, wrapped top-level expression).
type Unit interface {
	unit()
}

func (*Prototype) unit() {}
func (*Function) unit()  {}
