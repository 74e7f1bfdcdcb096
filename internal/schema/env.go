package schema

import "github.com/skywardapps/ts-openapi-gen/internal/typedoc"

// Env maps type parameter names to the arguments bound for one generic
// instantiation. It is persistent: Bind returns a new Env and never changes
// the receiver, so sibling instantiations cannot see each other's bindings.
// The nil *Env is the empty environment.
type Env struct {
	parent *Env
	name   string
	typ    typedoc.Type
	// origin is the environment the argument was written in; the argument
	// itself may mention type parameters bound there.
	origin *Env
}

// Bind returns an environment in which name resolves to t, evaluated in
// origin.
func (e *Env) Bind(name string, t typedoc.Type, origin *Env) *Env {
	return &Env{parent: e, name: name, typ: t, origin: origin}
}

// Lookup returns the innermost binding for name.
func (e *Env) Lookup(name string) (typedoc.Type, *Env, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.typ, cur.origin, true
		}
	}
	return nil, nil, false
}

// Len is the number of bindings, shadowed ones included.
func (e *Env) Len() int {
	n := 0
	for cur := e; cur != nil; cur = cur.parent {
		n++
	}
	return n
}
