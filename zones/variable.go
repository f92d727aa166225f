package zones

// A Variable identifies a register, stack slot or shadow value tracked by the
// numerical domain. Variables compare by value; callers are expected to
// construct them through a single factory so that variables with equal names
// also have equal IDs.
type Variable struct {
	ID   uint32
	Name string
}

func (v Variable) String() string { return v.Name }
