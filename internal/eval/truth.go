package eval

// Truth is a three-valued SQL truth value. The ordering False < Unknown <
// True makes AND the minimum and OR the maximum.
type Truth int8

const (
	False Truth = iota
	Unknown
	True
)

func (t Truth) And(o Truth) Truth { return min(t, o) }
func (t Truth) Or(o Truth) Truth  { return max(t, o) }
func (t Truth) Not() Truth        { return True - t }

func (t Truth) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "unknown"
	}
}

func truthOf(b bool) Truth {
	if b {
		return True
	}
	return False
}
