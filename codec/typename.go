package codec

import "strings"

// DefaultNamespace is elided from a TypeName's external (string) form, per
// spec §3: "a default namespace is elided in external form".
const DefaultNamespace = "M"

// TypeName is a qualified "<namespace>.<local>" type identifier. A bare
// local name (no dot) is implicitly qualified with DefaultNamespace.
type TypeName struct {
	Namespace string
	Local     string
}

// NewTypeName parses a qualified or unqualified name into a TypeName.
func NewTypeName(s string) TypeName {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return TypeName{Namespace: s[:i], Local: s[i+1:]}
	}
	return TypeName{Namespace: DefaultNamespace, Local: s}
}

// String renders the external form: the bare local name when Namespace is
// DefaultNamespace, else the fully qualified "ns.local" form.
func (t TypeName) String() string {
	if t.Namespace == DefaultNamespace || t.Namespace == "" {
		return t.Local
	}
	return t.Namespace + "." + t.Local
}

// Qualified always renders "namespace.local", even for the default
// namespace; used internally as a map key so "M.Foo" and "Foo" collide.
func (t TypeName) Qualified() string {
	ns := t.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + "." + t.Local
}

// IsZero reports whether t is the unset TypeName.
func (t TypeName) IsZero() bool { return t.Namespace == "" && t.Local == "" }
