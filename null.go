package profit

// Null is a profile that contributes nothing. It ignores parameters other
// than convolve, which makes it a placeholder in configurations and a probe
// for the composition pipeline.
type Null struct {
	ToConvolve bool

	table paramTable
}

// NewNull returns a null profile.
func NewNull() *Null {
	n := &Null{table: paramTable{}}
	n.table.addBool("convolve", &n.ToConvolve)
	return n
}

// Kind returns KindNull.
func (n *Null) Kind() string { return KindNull }

// SetParam sets convolve and silently accepts any other name.
func (n *Null) SetParam(name string, value any) error {
	if _, ok := n.table[name]; !ok {
		return nil
	}
	return n.table.set(KindNull, name, value)
}

// Convolve reports the convolve flag.
func (n *Null) Convolve() bool { return n.ToConvolve }

// Init does nothing.
func (n *Null) Init(*Frame) error { return nil }

// Render does nothing.
func (n *Null) Render(*Frame, *Image) {}
