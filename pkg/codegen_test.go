package kea

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
)

func parseDef(t *testing.T, src string) *Function {
	t.Helper()

	fn, err := newParser(src).ParseDefinition()
	assert.NoError(t, err)

	return fn
}

func TestValueScope(t *testing.T) {
	s := NewValueScope()
	s.Push()

	val1 := constant.NewFloat(types.Double, 1)
	val2 := constant.NewFloat(types.Double, 2)

	s.Bind("id1", val1)
	s.Bind("id2", val2)

	got, ok := s.Lookup("id1")
	assert.True(t, ok)
	assert.Equal(t, val1, got)

	got, ok = s.Lookup("id2")
	assert.True(t, ok)
	assert.Equal(t, val2, got)

	_, ok = s.Lookup("id3")
	assert.False(t, ok)
}

func TestValueScopeShadowRestore(t *testing.T) {
	s := NewValueScope()
	s.Push()

	outer := constant.NewFloat(types.Double, 1)
	inner := constant.NewFloat(types.Double, 2)

	s.Bind("i", outer)

	s.Push()
	s.Bind("i", inner)

	got, _ := s.Lookup("i")
	assert.Equal(t, inner, got)

	s.Pop()

	got, _ = s.Lookup("i")
	assert.Equal(t, outer, got)
}

func TestCodegenFunction(t *testing.T) {
	reg := NewRegistry()
	cg := NewCodegen(reg)

	f, err := cg.Compile(parseDef(t, "def add(a, b) a + b"))
	assert.NoError(t, err)
	assert.Equal(t, "add", f.Name())

	got := cg.Module().String()
	assert.Contains(t, got, "define double @add(double %a, double %b)")
	assert.Contains(t, got, "fadd")

	proto, ok := reg.Lookup("add")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, proto.Params)
}

func TestCodegenComparisonWidensToDouble(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	_, err := cg.Compile(parseDef(t, "def lt(a, b) a < b"))
	assert.NoError(t, err)

	got := cg.Module().String()
	assert.Contains(t, got, "fcmp ult")
	assert.Contains(t, got, "uitofp")
}

func TestCodegenIf(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	_, err := cg.Compile(parseDef(t, "def min(a, b) if a < b then a else b"))
	assert.NoError(t, err)

	got := cg.Module().String()
	assert.Contains(t, got, "br i1")
	assert.Contains(t, got, "phi double")
}

func TestCodegenNestedIf(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	// The inner if opens extra blocks; the outer phi edge must come from
	// the block the then branch actually ended in.
	f, err := cg.Compile(parseDef(t, "def f(a, b) if a then (if b then 1 else 2) else 3"))
	assert.NoError(t, err)
	assert.NoError(t, verifyFunc(f))
}

func TestCodegenFor(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	f, err := cg.Compile(parseDef(t, "def loopy(n) for i = 1, i < n in i"))
	assert.NoError(t, err)
	assert.NoError(t, verifyFunc(f))

	got := cg.Module().String()
	assert.Contains(t, got, "phi double")
	assert.Contains(t, got, "fadd")
}

func TestCodegenUnknownVariable(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	_, err := cg.Compile(parseDef(t, "def f(a) b"))
	assert.ErrorContains(t, err, "unknown variable name")
}

func TestCodegenUnknownFunction(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	_, err := cg.Compile(parseDef(t, "def f(a) g(a)"))
	assert.ErrorContains(t, err, "unknown function referenced")
}

func TestCodegenArityMismatch(t *testing.T) {
	reg := NewRegistry()

	cg := NewCodegen(reg)
	_, err := cg.Compile(&Prototype{Name: "g", Params: []string{"x"}})
	assert.NoError(t, err)

	cg = NewCodegen(reg)
	_, err = cg.Compile(parseDef(t, "def f(a) g(a, a)"))
	assert.ErrorContains(t, err, "incorrect number of arguments")
}

func TestCodegenInvalidOperator(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	_, err := cg.Compile(&Function{
		Proto: &Prototype{Name: "f"},
		Body: &BinaryExpr{
			Op:  '/',
			Lhs: &NumberExpr{Val: 1},
			Rhs: &NumberExpr{Val: 2},
		},
	})
	assert.ErrorContains(t, err, "invalid binary operator")
}

func TestCodegenRedefineSameUnitFails(t *testing.T) {
	cg := NewCodegen(NewRegistry())

	_, err := cg.Compile(parseDef(t, "def f(a) a"))
	assert.NoError(t, err)

	_, err = cg.Compile(parseDef(t, "def f(a) a + 1"))
	assert.ErrorContains(t, err, "function cannot be redefined")
}

func TestCodegenRedefineAcrossUnits(t *testing.T) {
	reg := NewRegistry()

	_, err := NewCodegen(reg).Compile(parseDef(t, "def f(a) a"))
	assert.NoError(t, err)

	_, err = NewCodegen(reg).Compile(parseDef(t, "def f(a) a + 1"))
	assert.NoError(t, err)
}

func TestCodegenExternTwice(t *testing.T) {
	reg := NewRegistry()
	proto := &Prototype{Name: "sin", Params: []string{"x"}}

	_, err := NewCodegen(reg).Compile(proto)
	assert.NoError(t, err)

	_, err = NewCodegen(reg).Compile(proto)
	assert.NoError(t, err)
}

func TestCodegenRegistryResolvesAcrossUnits(t *testing.T) {
	reg := NewRegistry()

	_, err := NewCodegen(reg).Compile(parseDef(t, "def g(x) x"))
	assert.NoError(t, err)

	// g is not declared in this fresh unit; the registry supplies it.
	cg := NewCodegen(reg)
	_, err = cg.Compile(parseDef(t, "def f(a) g(a)"))
	assert.NoError(t, err)
	assert.Contains(t, cg.Module().String(), "declare double @g(double %x)")
}

func TestCodegenFailedBodyErasesFunction(t *testing.T) {
	reg := NewRegistry()
	cg := NewCodegen(reg)

	_, err := cg.Compile(parseDef(t, "def f(a) nope"))
	assert.Error(t, err)

	// The partial function is gone from the unit, but the prototype stays
	// registered.
	assert.Empty(t, cg.Module().Funcs)

	_, ok := reg.Lookup("f")
	assert.True(t, ok)
}

func TestVerifyUnterminatedBlock(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("broken", types.Double)
	f.NewBlock("")

	assert.ErrorContains(t, verifyFunc(f), "unterminated block")
}

func TestVerifyPhiEdgeFromNonPredecessor(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("bad", types.Double)

	entry := f.NewBlock("")
	merge := f.NewBlock("")
	stray := f.NewBlock("")

	entry.NewBr(merge)

	phi := merge.NewPhi(ir.NewIncoming(constant.NewFloat(types.Double, 1), stray))
	merge.NewRet(phi)

	stray.NewRet(constant.NewFloat(types.Double, 0))

	assert.ErrorContains(t, verifyFunc(f), "phi edge from non-predecessor")
}
