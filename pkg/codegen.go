package kea

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
)

// Codegen lowers one compilation unit into a fresh LLVM module. Every value
// in the language is a double; booleans exist only transiently between a
// comparison and the widening back to double.
type Codegen struct {
	mod      *ir.Module
	block    *ir.Block
	registry *Registry
	scope    *ValueScope
}

func NewCodegen(registry *Registry) *Codegen {
	return &Codegen{
		mod:      ir.NewModule(),
		registry: registry,
		scope:    NewValueScope(),
	}
}

// Module is the compilation unit being emitted into. After a successful
// Compile of a definition, ownership passes to the backend wholesale.
func (c *Codegen) Module() *ir.Module {
	return c.mod
}

// Compile lowers a prototype or a function definition and returns the
// generated function. A failed definition leaves no function behind in the
// unit, but its prototype stays registered.
func (c *Codegen) Compile(unit Unit) (*ir.Func, error) {
	switch u := unit.(type) {
	case *Prototype:
		c.registry.Declare(u)
		return c.prototype(u), nil
	case *Function:
		return c.function(u)
	default:
		return nil, errors.New("unsupported compilation unit %T", unit)
	}
}

// prototype emits a declaration of the form fn(double, ...) -> double.
func (c *Codegen) prototype(proto *Prototype) *ir.Func {
	params := make([]*ir.Param, len(proto.Params))
	for i, name := range proto.Params {
		params[i] = ir.NewParam(name, types.Double)
	}

	return c.mod.NewFunc(proto.Name, types.Double, params...)
}

// getFunction resolves name to a declaration in the current unit, emitting
// one from the registry when the unit doesn't have it yet. Returns nil for
// names never declared anywhere.
func (c *Codegen) getFunction(name string) *ir.Func {
	for _, f := range c.mod.Funcs {
		if f.Name() == name {
			return f
		}
	}

	if proto, ok := c.registry.Lookup(name); ok {
		return c.prototype(proto)
	}

	return nil
}

func (c *Codegen) function(fn *Function) (*ir.Func, error) {
	// Register the prototype before lowering the body so recursive calls
	// resolve. A failed body leaves this entry behind.
	c.registry.Declare(fn.Proto)

	f := c.getFunction(fn.Proto.Name)
	if len(f.Blocks) > 0 {
		return nil, errors.New("function cannot be redefined: %v", fn.Proto.Name)
	}

	c.block = f.NewBlock("")

	c.scope.Push()
	defer c.scope.Pop()

	for _, param := range f.Params {
		c.scope.Bind(param.Name(), param)
	}

	ret, err := c.expr(fn.Body)
	if err != nil {
		c.removeFunc(f)
		return nil, err
	}

	c.block.NewRet(ret)

	if err := verifyFunc(f); err != nil {
		return nil, errors.Wrap(err, "verify %v", fn.Proto.Name)
	}

	return f, nil
}

func (c *Codegen) expr(e Expr) (value.Value, error) {
	switch e := e.(type) {
	case *NumberExpr:
		return constant.NewFloat(types.Double, e.Val), nil
	case *VariableExpr:
		if val, ok := c.scope.Lookup(e.Name); ok {
			return val, nil
		}

		return nil, errors.New("unknown variable name: %v", e.Name)
	case *BinaryExpr:
		return c.binaryExpr(e)
	case *CallExpr:
		return c.callExpr(e)
	case *IfExpr:
		return c.ifExpr(e)
	case *ForExpr:
		return c.forExpr(e)
	default:
		return nil, errors.New("cannot lower expression %T", e)
	}
}

func (c *Codegen) binaryExpr(e *BinaryExpr) (value.Value, error) {
	lhs, err := c.expr(e.Lhs)
	if err != nil {
		return nil, err
	}

	rhs, err := c.expr(e.Rhs)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case '+':
		return c.block.NewFAdd(lhs, rhs), nil
	case '-':
		return c.block.NewFSub(lhs, rhs), nil
	case '*':
		return c.block.NewFMul(lhs, rhs), nil
	case '<':
		cmp := c.block.NewFCmp(enum.FPredULT, lhs, rhs)
		// Widen the i1 back to double, true -> 1.0.
		return c.block.NewUIToFP(cmp, types.Double), nil
	default:
		return nil, errors.New("invalid binary operator: %q", e.Op)
	}
}

func (c *Codegen) callExpr(e *CallExpr) (value.Value, error) {
	callee := c.getFunction(e.Callee)
	if callee == nil {
		return nil, errors.New("unknown function referenced: %v", e.Callee)
	}

	if len(callee.Params) != len(e.Args) {
		return nil, errors.New("incorrect number of arguments passed to %v: want %v, got %v",
			e.Callee, len(callee.Params), len(e.Args))
	}

	args := make([]value.Value, len(e.Args))
	for i, arg := range e.Args {
		val, err := c.expr(arg)
		if err != nil {
			return nil, err
		}

		args[i] = val
	}

	return c.block.NewCall(callee, args...), nil
}

// ifExpr lowers a conditional into a diamond:
//
//	  ; cond
//	  br i1 ..., then, else
//	   |
//	then       else
//	   |         |
//	   +----+----+
//	        v
//	  ; merge
//	  phi [then, else]
func (c *Codegen) ifExpr(e *IfExpr) (value.Value, error) {
	cond, err := c.expr(e.Cond)
	if err != nil {
		return nil, err
	}

	// Any non-zero condition selects the then branch.
	condV := c.block.NewFCmp(enum.FPredONE, cond, zero())

	fn := c.block.Parent

	// Append the then block now; else and merge attach once the preceding
	// branch is fully lowered.
	thenB := fn.NewBlock("")
	elseB := ir.NewBlock("")
	mergeB := ir.NewBlock("")

	c.block.NewCondBr(condV, thenB, elseB)

	c.block = thenB
	thenV, err := c.expr(e.Then)
	if err != nil {
		return nil, err
	}
	c.block.NewBr(mergeB)
	// The then expression may have opened more blocks (a nested if); the
	// phi edge must come from wherever it actually ended.
	thenExit := c.block

	appendBlock(fn, elseB)
	c.block = elseB
	elseV, err := c.expr(e.Else)
	if err != nil {
		return nil, err
	}
	c.block.NewBr(mergeB)
	elseExit := c.block

	appendBlock(fn, mergeB)
	c.block = mergeB

	phi := c.block.NewPhi(
		ir.NewIncoming(thenV, thenExit),
		ir.NewIncoming(elseV, elseExit),
	)

	return phi, nil
}

// forExpr lowers a loop:
//
//	entry:
//	  ; start
//	  br loop
//	loop:
//	  i = phi [start, entry], [next, loopexit]
//	  ; body, step, end condition
//	  br i1 ..., loop, after
//	after:
//
// The loop variable lives in its own scope frame so it shadows any outer
// binding of the same name for exactly the body and clauses.
func (c *Codegen) forExpr(e *ForExpr) (value.Value, error) {
	start, err := c.expr(e.Start)
	if err != nil {
		return nil, err
	}

	fn := c.block.Parent
	entryB := c.block

	loopB := fn.NewBlock("")
	entryB.NewBr(loopB)
	c.block = loopB

	variable := c.block.NewPhi(ir.NewIncoming(start, entryB))

	c.scope.Push()
	defer c.scope.Pop()
	c.scope.Bind(e.Var, variable)

	// The body's value is discarded.
	if _, err := c.expr(e.Body); err != nil {
		return nil, err
	}

	step := value.Value(constant.NewFloat(types.Double, 1))
	if e.Step != nil {
		step, err = c.expr(e.Step)
		if err != nil {
			return nil, err
		}
	}

	next := c.block.NewFAdd(variable, step)

	end, err := c.expr(e.End)
	if err != nil {
		return nil, err
	}

	endCond := c.block.NewFCmp(enum.FPredONE, end, zero())

	// Like the then branch of an if, body/step/end may have moved us into a
	// new block; the back edge carries the incremented variable from there.
	loopExit := c.block
	variable.Incs = append(variable.Incs, ir.NewIncoming(next, loopExit))

	afterB := fn.NewBlock("")
	loopExit.NewCondBr(endCond, loopB, afterB)
	c.block = afterB

	// Loops always evaluate to 0.
	return zero(), nil
}

func (c *Codegen) removeFunc(f *ir.Func) {
	for i, g := range c.mod.Funcs {
		if g == f {
			c.mod.Funcs = append(c.mod.Funcs[:i], c.mod.Funcs[i+1:]...)
			return
		}
	}
}

func appendBlock(fn *ir.Func, block *ir.Block) {
	block.Parent = fn
	fn.Blocks = append(fn.Blocks, block)
}

func zero() *constant.Float {
	return constant.NewFloat(types.Double, 0)
}
