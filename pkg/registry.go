package kea

// Registry maps function names to their declared prototypes across
// compilation units. It grows monotonically for the lifetime of a session;
// declaring a name again overwrites the earlier entry, which is what lets a
// later unit redefine a function. Mutated only by the code generator.
type Registry struct {
	protos map[string]*Prototype
}

func NewRegistry() *Registry {
	return &Registry{
		protos: make(map[string]*Prototype),
	}
}

func (r *Registry) Declare(proto *Prototype) {
	r.protos[proto.Name] = proto
}

func (r *Registry) Lookup(name string) (*Prototype, bool) {
	proto, ok := r.protos[name]
	return proto, ok
}
