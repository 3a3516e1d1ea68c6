package kea

import (
	"github.com/llir/llvm/ir/value"
)

// ValueScope maps source names to backend value handles for one function
// body. Frames stack up so a loop variable can shadow a parameter and the
// parameter binding reappears when the frame pops.
type ValueScope struct {
	frames []map[string]value.Value
}

func NewValueScope() *ValueScope {
	return &ValueScope{}
}

func (s *ValueScope) Push() {
	s.frames = append(s.frames, make(map[string]value.Value))
}

func (s *ValueScope) Pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// Bind sets id in the innermost frame. Binding the same id twice in one
// frame overwrites, so duplicate parameter names resolve to the last one.
func (s *ValueScope) Bind(id string, val value.Value) {
	s.frames[len(s.frames)-1][id] = val
}

func (s *ValueScope) Lookup(id string) (value.Value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if val, ok := s.frames[i][id]; ok {
			return val, true
		}
	}

	return nil, false
}
