package kea

import (
	"github.com/llir/llvm/ir"
	"tlog.app/go/errors"
)

// verifyFunc structurally checks a generated function: every block must be
// terminated and every phi must have exactly one incoming edge per
// predecessor, all of them blocks of this function.
func verifyFunc(f *ir.Func) error {
	if len(f.Blocks) == 0 {
		return errors.New("function %v has no body", f.Name())
	}

	blocks := make(map[*ir.Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		blocks[b] = true
	}

	preds := make(map[*ir.Block]map[*ir.Block]bool)
	for _, b := range f.Blocks {
		if b.Term == nil {
			return errors.New("unterminated block in %v", f.Name())
		}

		for _, succ := range b.Term.Succs() {
			if !blocks[succ] {
				return errors.New("branch to foreign block in %v", f.Name())
			}

			if preds[succ] == nil {
				preds[succ] = make(map[*ir.Block]bool)
			}
			preds[succ][b] = true
		}
	}

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				continue
			}

			if len(phi.Incs) != len(preds[b]) {
				return errors.New("phi with %v edges for %v predecessors in %v",
					len(phi.Incs), len(preds[b]), f.Name())
			}

			for _, inc := range phi.Incs {
				pred, ok := inc.Pred.(*ir.Block)
				if !ok || !preds[b][pred] {
					return errors.New("phi edge from non-predecessor in %v", f.Name())
				}
			}
		}
	}

	return nil
}
