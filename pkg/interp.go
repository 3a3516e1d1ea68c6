package kea

import (
	"io"
	"math"
	"os"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
)

// Handle identifies one installed compilation unit. Removing a handle
// retracts the unit's code from symbol resolution.
type Handle int64

// Engine executes code from installed compilation units. For a name defined
// in several units the most recently installed definition wins.
type Engine interface {
	Add(mod *ir.Module) Handle
	Remove(h Handle)
	Call(name string, args ...float64) (float64, error)
}

type installed struct {
	handle Handle
	mod    *ir.Module
}

// Interp is an Engine that runs functions by walking their emitted IR.
// Names that no installed unit defines resolve against the host builtin
// table, which is what an extern declaration binds against.
type Interp struct {
	seq   Handle
	mods  []installed
	hosts map[string]HostFunc
	out   io.Writer
}

func NewInterp() *Interp {
	in := &Interp{
		out: os.Stdout,
	}
	in.hosts = hostBuiltins(in)

	return in
}

// SetOutput redirects what printing builtins write. Defaults to stdout.
func (in *Interp) SetOutput(w io.Writer) {
	in.out = w
}

// RegisterHost makes fn callable through an extern declaration.
func (in *Interp) RegisterHost(name string, fn HostFunc) {
	in.hosts[name] = fn
}

func (in *Interp) Add(mod *ir.Module) Handle {
	in.seq++
	in.mods = append(in.mods, installed{handle: in.seq, mod: mod})

	return in.seq
}

func (in *Interp) Remove(h Handle) {
	for i, m := range in.mods {
		if m.handle == h {
			in.mods = append(in.mods[:i], in.mods[i+1:]...)
			return
		}
	}
}

func (in *Interp) Call(name string, args ...float64) (float64, error) {
	if f := in.lookupDefined(name); f != nil {
		return in.run(f, args)
	}

	if host, ok := in.hosts[name]; ok {
		return host(args...), nil
	}

	return 0, errors.New("undefined symbol: %v", name)
}

// lookupDefined finds the newest installed function body with that name.
// Bodyless declarations don't count; they resolve across units.
func (in *Interp) lookupDefined(name string) *ir.Func {
	for i := len(in.mods) - 1; i >= 0; i-- {
		for _, f := range in.mods[i].mod.Funcs {
			if f.Name() == name && len(f.Blocks) > 0 {
				return f
			}
		}
	}

	return nil
}

func (in *Interp) run(f *ir.Func, args []float64) (float64, error) {
	if len(args) != len(f.Params) {
		return 0, errors.New("wrong number of arguments for %v: want %v, got %v",
			f.Name(), len(f.Params), len(args))
	}

	regs := make(map[value.Value]float64)
	for i, param := range f.Params {
		regs[param] = args[i]
	}

	block := f.Blocks[0]
	var prev *ir.Block

	for {
		// Phis read their incoming value against the edge we arrived on,
		// all before any other instruction of the block executes.
		if err := in.enterBlock(block, prev, regs); err != nil {
			return 0, errors.Wrap(err, "%v", f.Name())
		}

		for _, inst := range block.Insts {
			if err := in.exec(inst, regs); err != nil {
				return 0, errors.Wrap(err, "%v", f.Name())
			}
		}

		switch term := block.Term.(type) {
		case *ir.TermRet:
			return in.operand(term.X, regs)
		case *ir.TermBr:
			target, err := asBlock(term.Target)
			if err != nil {
				return 0, err
			}

			prev, block = block, target
		case *ir.TermCondBr:
			cond, err := in.operand(term.Cond, regs)
			if err != nil {
				return 0, err
			}

			next := term.TargetFalse
			if cond != 0 {
				next = term.TargetTrue
			}

			target, err := asBlock(next)
			if err != nil {
				return 0, err
			}

			prev, block = block, target
		default:
			return 0, errors.New("unsupported terminator %T in %v", block.Term, f.Name())
		}
	}
}

func (in *Interp) enterBlock(block, prev *ir.Block, regs map[value.Value]float64) error {
	type assign struct {
		phi *ir.InstPhi
		val float64
	}

	var assigns []assign
	for _, inst := range block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			continue
		}

		found := false
		for _, inc := range phi.Incs {
			if inc.Pred != prev {
				continue
			}

			val, err := in.operand(inc.X, regs)
			if err != nil {
				return err
			}

			assigns = append(assigns, assign{phi: phi, val: val})
			found = true
			break
		}

		if !found {
			return errors.New("phi has no edge for predecessor")
		}
	}

	for _, a := range assigns {
		regs[a.phi] = a.val
	}

	return nil
}

func (in *Interp) exec(inst ir.Instruction, regs map[value.Value]float64) error {
	switch inst := inst.(type) {
	case *ir.InstPhi:
		// Handled on block entry.
		return nil
	case *ir.InstFAdd:
		return in.binop(inst, inst.X, inst.Y, regs, func(a, b float64) float64 { return a + b })
	case *ir.InstFSub:
		return in.binop(inst, inst.X, inst.Y, regs, func(a, b float64) float64 { return a - b })
	case *ir.InstFMul:
		return in.binop(inst, inst.X, inst.Y, regs, func(a, b float64) float64 { return a * b })
	case *ir.InstFCmp:
		x, err := in.operand(inst.X, regs)
		if err != nil {
			return err
		}

		y, err := in.operand(inst.Y, regs)
		if err != nil {
			return err
		}

		var res bool
		switch inst.Pred {
		case enum.FPredULT:
			// Unordered or less than.
			res = !(x >= y)
		case enum.FPredONE:
			// Ordered and not equal.
			res = !math.IsNaN(x) && !math.IsNaN(y) && x != y
		default:
			return errors.New("unsupported fcmp predicate %v", inst.Pred)
		}

		if res {
			regs[inst] = 1
		} else {
			regs[inst] = 0
		}

		return nil
	case *ir.InstUIToFP:
		val, err := in.operand(inst.From, regs)
		if err != nil {
			return err
		}

		regs[inst] = val

		return nil
	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return errors.New("unsupported indirect call")
		}

		args := make([]float64, len(inst.Args))
		for i, arg := range inst.Args {
			val, err := in.operand(arg, regs)
			if err != nil {
				return err
			}

			args[i] = val
		}

		// Resolve by name so calls link against the newest installed
		// definition, not the unit-local declaration.
		res, err := in.Call(callee.Name(), args...)
		if err != nil {
			return err
		}

		regs[inst] = res

		return nil
	default:
		return errors.New("unsupported instruction %T", inst)
	}
}

func (in *Interp) binop(inst value.Value, x, y value.Value, regs map[value.Value]float64, op func(a, b float64) float64) error {
	xv, err := in.operand(x, regs)
	if err != nil {
		return err
	}

	yv, err := in.operand(y, regs)
	if err != nil {
		return err
	}

	regs[inst] = op(xv, yv)

	return nil
}

func (in *Interp) operand(v value.Value, regs map[value.Value]float64) (float64, error) {
	switch v := v.(type) {
	case *constant.Float:
		return constFloat(v), nil
	default:
		if val, ok := regs[v]; ok {
			return val, nil
		}

		return 0, errors.New("use of undefined value %v", v.Ident())
	}
}

// constFloat reads a float constant. NaN constants carry only a flag and a
// sign, so the mantissa must not be read for them.
func constFloat(c *constant.Float) float64 {
	if c.NaN {
		return math.NaN()
	}

	val, _ := c.X.Float64()

	return val
}

// asBlock narrows a branch-target operand, which the builder types as a
// plain value, back to the block it must be.
func asBlock(v value.Value) (*ir.Block, error) {
	b, ok := v.(*ir.Block)
	if !ok {
		return nil, errors.New("branch target %v is not a block", v.Ident())
	}

	return b, nil
}
